// internal/scenario/prebuilt.go
package scenario

import (
	"sync"

	"github.com/hazmap/simkit/pkg/core"
)

var (
	minimalOnce sync.Once
	minimal     core.Scenario

	multiHazardOnce sync.Once
	multiHazard     core.Scenario
)

// Minimal is the smallest useful scenario: one waypoint and one route.
// Built once per process; callers get their own copy.
func Minimal() core.Scenario {
	minimalOnce.Do(func() {
		minimal = NewBuilder(1).
			WithWaypoint("station-alpha").
			WithRoute("evac-1", 4).
			Freeze()
	})
	return Clone(minimal)
}

// MultiHazard is a dense scenario with overlapping hazard kinds, used by
// layer-ordering and styling tests.
func MultiHazard() core.Scenario {
	multiHazardOnce.Do(func() {
		multiHazard = NewBuilder(7).
			WithWaypoint("station-alpha").
			WithWaypoint("station-bravo").
			WithRoute("evac-1", 6).
			WithRoute("evac-2", 5).
			WithBuilding("shelter-hall").
			WithBuilding("supply-depot").
			WithHazardZone(core.HazardFlood).
			WithHazardZone(core.HazardWildfire).
			WithHazardZone(core.HazardChemical).
			Freeze()
	})
	return Clone(multiHazard)
}
