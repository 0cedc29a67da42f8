package web

import (
	_ "embed"
)

//go:embed markers.schema.json
var markerSchema string

// GetMarkerSchema returns the JSON schema markers.json files conform to.
func GetMarkerSchema() string {
	return markerSchema
}
