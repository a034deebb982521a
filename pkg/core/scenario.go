// pkg/core/scenario.go
package core

// HazardKind classifies a hazard zone in generated scenarios.
type HazardKind string

const (
	HazardFlood    HazardKind = "flood"
	HazardWildfire HazardKind = "wildfire"
	HazardChemical HazardKind = "chemical"
)

// Waypoint is a labeled point of interest.
type Waypoint struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Position Position3D `json:"position"`
}

// Route is an ordered path between locations.
type Route struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Points Polyline `json:"points"`
}

// Building is a labeled footprint polygon.
type Building struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Footprint Ring   `json:"footprint"`
}

// HazardZone is an area affected by a hazard, with severity 0..1.
type HazardZone struct {
	ID       string     `json:"id"`
	Kind     HazardKind `json:"kind"`
	Severity float64    `json:"severity"`
	Area     Ring       `json:"area"`
}

// Scenario is an immutable bag of generated fixture entities. Values of
// this type are safe to share across tests once frozen by the builder.
type Scenario struct {
	Seed      uint64       `json:"seed"`
	Waypoints []Waypoint   `json:"waypoints"`
	Routes    []Route      `json:"routes"`
	Buildings []Building   `json:"buildings"`
	Hazards   []HazardZone `json:"hazards"`
}

// FixtureMetadata describes a stored scenario fixture.
type FixtureMetadata struct {
	Name     string `json:"name"`
	Seed     uint64 `json:"seed"`
	Checksum string `json:"checksum"`
}
