// internal/scenario/builder.go

// Package scenario generates deterministic fixture data for dashboard
// tests. A builder is a pure function of its seed and its call sequence:
// two builders with the same seed and the same with-calls freeze into
// deeply equal scenarios, on every platform.
package scenario

import (
	"fmt"
	"math/rand/v2"

	"github.com/hazmap/simkit/internal/geo"
	"github.com/hazmap/simkit/pkg/core"
)

// Base region the generator scatters entities over, in geographic
// coordinates. Roughly the San Francisco bay.
const (
	baseLng          = -122.45
	baseLat          = 37.75
	spreadLng        = 0.25
	spreadLat        = 0.20
	maxElev          = 120.0
	routeStep        = 0.004
	maxFootprintSide = 0.0012
)

// Builder accumulates scenario entities from a seeded generator.
// Not safe for concurrent use; build on one goroutine.
type Builder struct {
	rng    *rand.Rand
	scn    core.Scenario
	origin core.LngLat

	waypointCount int
	routeCount    int
	buildingCount int
	hazardCount   int
}

// NewBuilder creates a builder seeded with the given value. The PCG
// source keeps output stable across platforms and Go releases of the
// same generator algorithm.
func NewBuilder(seed uint64) *Builder {
	return &Builder{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		scn:    core.Scenario{Seed: seed},
		origin: core.LngLat{Lng: baseLng, Lat: baseLat},
	}
}

// WithOrigin recenters the generated region on the given geographic
// coordinate. Only affects entities added after the call.
func (b *Builder) WithOrigin(origin core.LngLat) *Builder {
	b.origin = origin
	return b
}

// WithWaypoint appends a named waypoint at a generated position.
func (b *Builder) WithWaypoint(name string) *Builder {
	b.waypointCount++
	b.scn.Waypoints = append(b.scn.Waypoints, core.Waypoint{
		ID:       fmt.Sprintf("wp-%d", b.waypointCount),
		Name:     name,
		Position: geo.Project4326To3857Z(b.randLngLat(), b.rng.Float64()*maxElev),
	})
	return b
}

// WithRoute appends a named route with the given number of points. Fewer
// than two points is clamped to two, the linestring minimum.
func (b *Builder) WithRoute(name string, points int) *Builder {
	if points < 2 {
		points = 2
	}
	b.routeCount++

	start := b.randLngLat()
	line := make(core.Polyline, 0, points)
	cur := start
	for i := 0; i < points; i++ {
		line = append(line, geo.Project4326To3857(cur))
		cur.Lng += (b.rng.Float64() - 0.3) * routeStep
		cur.Lat += (b.rng.Float64() - 0.3) * routeStep
	}

	b.scn.Routes = append(b.scn.Routes, core.Route{
		ID:     fmt.Sprintf("route-%d", b.routeCount),
		Name:   name,
		Points: line,
	})
	return b
}

// WithRoutePath appends a route with explicit, already-projected points.
// The points are copied; the caller's slice stays independent.
func (b *Builder) WithRoutePath(name string, points core.Polyline) *Builder {
	b.routeCount++
	b.scn.Routes = append(b.scn.Routes, core.Route{
		ID:     fmt.Sprintf("route-%d", b.routeCount),
		Name:   name,
		Points: append(core.Polyline{}, points...),
	})
	return b
}

// WithBuilding appends a labelled building with a rectangular footprint.
func (b *Builder) WithBuilding(label string) *Builder {
	b.buildingCount++

	sw := b.randLngLat()
	w := b.rng.Float64() * maxFootprintSide
	h := b.rng.Float64() * maxFootprintSide
	ring := core.Ring{
		geo.Project4326To3857(sw),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng + w, Lat: sw.Lat}),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng + w, Lat: sw.Lat + h}),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng, Lat: sw.Lat + h}),
	}

	b.scn.Buildings = append(b.scn.Buildings, core.Building{
		ID:        fmt.Sprintf("bldg-%d", b.buildingCount),
		Label:     label,
		Footprint: ring,
	})
	return b
}

// WithHazardZone appends a hazard zone of the given kind with a
// generated severity and rectangular area.
func (b *Builder) WithHazardZone(kind core.HazardKind) *Builder {
	b.hazardCount++

	sw := b.randLngLat()
	w := b.rng.Float64() * spreadLng * 0.1
	h := b.rng.Float64() * spreadLat * 0.1
	area := core.Ring{
		geo.Project4326To3857(sw),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng + w, Lat: sw.Lat}),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng + w, Lat: sw.Lat + h}),
		geo.Project4326To3857(core.LngLat{Lng: sw.Lng, Lat: sw.Lat + h}),
	}

	b.scn.Hazards = append(b.scn.Hazards, core.HazardZone{
		ID:       fmt.Sprintf("hazard-%d", b.hazardCount),
		Kind:     kind,
		Severity: b.rng.Float64(),
		Area:     area,
	})
	return b
}

// Freeze returns a deep copy of the accumulated scenario. The builder
// stays usable; later with-calls never mutate a frozen copy.
func (b *Builder) Freeze() core.Scenario {
	return Clone(b.scn)
}

func (b *Builder) randLngLat() core.LngLat {
	return core.LngLat{
		Lng: b.origin.Lng + b.rng.Float64()*spreadLng,
		Lat: b.origin.Lat + b.rng.Float64()*spreadLat,
	}
}

// Clone deep-copies a scenario, including every nested coordinate slice.
func Clone(s core.Scenario) core.Scenario {
	out := core.Scenario{Seed: s.Seed}
	if s.Waypoints != nil {
		out.Waypoints = append([]core.Waypoint(nil), s.Waypoints...)
	}
	if s.Routes != nil {
		out.Routes = make([]core.Route, len(s.Routes))
		for i, r := range s.Routes {
			r.Points = append(core.Polyline(nil), r.Points...)
			out.Routes[i] = r
		}
	}
	if s.Buildings != nil {
		out.Buildings = make([]core.Building, len(s.Buildings))
		for i, bl := range s.Buildings {
			bl.Footprint = append(core.Ring(nil), bl.Footprint...)
			out.Buildings[i] = bl
		}
	}
	if s.Hazards != nil {
		out.Hazards = make([]core.HazardZone, len(s.Hazards))
		for i, hz := range s.Hazards {
			hz.Area = append(core.Ring(nil), hz.Area...)
			out.Hazards[i] = hz
		}
	}
	return out
}
