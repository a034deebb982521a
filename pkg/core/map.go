// pkg/core/map.go
package core

import "encoding/json"

// Event names fired by map providers. These mirror the engine's event
// vocabulary so listener code behaves identically against the simulation.
const (
	EventLoad          = "load"
	EventStyleLoad     = "style.load"
	EventError         = "error"
	EventLayerAdded    = "layeradded"
	EventLayerRemoved  = "layerremoved"
	EventSourceAdded   = "sourceadded"
	EventSourceRemoved = "sourceremoved"
)

// MapOptions configures a new map handle. Center and zoom are stored but
// never interpreted geometrically; no projection math happens on create.
type MapOptions struct {
	Style  string     `json:"style"`
	Center Position2D `json:"center"`
	Zoom   float64    `json:"zoom"`
}

// SourceDefinition describes a data source attached to a map.
type SourceDefinition struct {
	Type string          `json:"type"` // "geojson", "vector", "raster"
	Data json.RawMessage `json:"data,omitempty"`
	URL  string          `json:"url,omitempty"`
}

// LayerDefinition describes a rendered layer. Source must reference an
// existing source id on the owning handle.
type LayerDefinition struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"` // "fill", "line", "symbol", "circle"
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint,omitempty"`
	Layout map[string]any `json:"layout,omitempty"`
}

// StyleSnapshot is a structural copy of a handle's current style state.
// Layers preserve insertion order (paint order).
type StyleSnapshot struct {
	Sources map[string]SourceDefinition `json:"sources"`
	Layers  []LayerDefinition           `json:"layers"`
}

// MapEvent is the payload delivered to listeners.
type MapEvent struct {
	Name     string `json:"name"`
	LayerID  string `json:"layerId,omitempty"`
	SourceID string `json:"sourceId,omitempty"`
	Message  string `json:"message,omitempty"` // set for "error" events
}
