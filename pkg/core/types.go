// pkg/core/types.go
package core

// Position2D represents a projected map coordinate (EPSG:3857).
type Position2D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
}

// Position3D represents a projected map coordinate with elevation.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"` // elevation ASL
}

// LngLat is a geographic coordinate (EPSG:4326) as supplied by feeds and
// scenario authors before projection.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Polyline is an ordered sequence of projected positions.
type Polyline []Position2D

// Ring is a closed sequence of projected positions. The first and last
// positions are expected to be equal.
type Ring []Position2D
