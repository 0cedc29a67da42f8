package web

type MarkerData struct {
	Maps []MapData `json:"maps"`
}

type MapData struct {
	Name    string   `json:"name"`
	Bounds  Bounds   `json:"bounds"`
	Chunks  int      `json:"chunks"`
	Markers []Marker `json:"markers"`
}

type Bounds struct {
	MinCol int `json:"minCol"`
	MaxCol int `json:"maxCol"`
	MinRow int `json:"minRow"`
	MaxRow int `json:"maxRow"`
}

type Marker struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}
