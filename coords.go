package isocarto

// ChunkPos identifies a chunk in the world grid. Y is the second horizontal
// axis (world Z), not height.
type ChunkPos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ProjectedPos is a chunk's position after rotating the grid 45 degrees.
// Every chunk touching one output tile ends up in a contiguous run of rows.
type ProjectedPos struct {
	Col int
	Row int
}

type Bounds struct {
	MinCol int `json:"minCol"`
	MaxCol int `json:"maxCol"`
	MinRow int `json:"minRow"`
	MaxRow int `json:"maxRow"`
}

type ProjectedChunk struct {
	Pos   ProjectedPos
	Chunk ChunkCandidate
}

func Project(pos ChunkPos) ProjectedPos {
	return ProjectedPos{
		Col: pos.X + pos.Y,
		Row: pos.Y - pos.X,
	}
}

// Unproject inverts Project. Col and Row always share parity so the
// division is exact.
func Unproject(p ProjectedPos) ChunkPos {
	return ChunkPos{
		X: (p.Col - p.Row) / 2,
		Y: (p.Col + p.Row) / 2,
	}
}

// ProjectAll translates chunks into the diagonal layout and tracks the
// bounding box in the same pass. Output order follows input order.
func ProjectAll(chunks []ChunkCandidate) (Bounds, []ProjectedChunk) {
	if len(chunks) == 0 {
		return Bounds{}, []ProjectedChunk{}
	}

	first := Project(chunks[0].Pos)
	b := Bounds{
		MinCol: first.Col,
		MaxCol: first.Col,
		MinRow: first.Row,
		MaxRow: first.Row,
	}

	out := make([]ProjectedChunk, 0, len(chunks))
	for _, c := range chunks {
		p := Project(c.Pos)
		b.MinCol = min(b.MinCol, p.Col)
		b.MaxCol = max(b.MaxCol, p.Col)
		b.MinRow = min(b.MinRow, p.Row)
		b.MaxRow = max(b.MaxRow, p.Row)
		out = append(out, ProjectedChunk{Pos: p, Chunk: c})
	}

	return b, out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
