// internal/handlers/apply.go

package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/hazmap/simkit/internal/geo"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
)

// ApplyResult lists what ApplyScenario added to the handle.
type ApplyResult struct {
	Sources []string `json:"sources"`
	Layers  []string `json:"layers"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// ApplyScenario renders a frozen scenario onto a map handle: one geojson
// source and one layer per non-empty entity class. Empty classes add
// nothing.
func ApplyScenario(h provider.Handle, scn core.Scenario) (ApplyResult, error) {
	var res ApplyResult

	add := func(name, layerType string, fc featureCollection, paint map[string]any) error {
		if len(fc.Features) == 0 {
			return nil
		}
		data, err := json.Marshal(fc)
		if err != nil {
			return fmt.Errorf("encoding %s features: %w", name, err)
		}
		sourceID := "scenario-" + name
		if err := h.AddSource(sourceID, core.SourceDefinition{Type: "geojson", Data: data}); err != nil {
			return err
		}
		layerID := sourceID + "-" + layerType
		if err := h.AddLayer(core.LayerDefinition{
			ID:     layerID,
			Type:   layerType,
			Source: sourceID,
			Paint:  paint,
		}); err != nil {
			return err
		}
		res.Sources = append(res.Sources, sourceID)
		res.Layers = append(res.Layers, layerID)
		return nil
	}

	wps, err := waypointFeatures(scn.Waypoints)
	if err != nil {
		return res, err
	}
	if err := add("waypoints", "circle", wps, nil); err != nil {
		return res, err
	}

	routes, err := routeFeatures(scn.Routes)
	if err != nil {
		return res, err
	}
	if err := add("routes", "line", routes, nil); err != nil {
		return res, err
	}

	bldgs, err := buildingFeatures(scn.Buildings)
	if err != nil {
		return res, err
	}
	if err := add("buildings", "fill", bldgs, nil); err != nil {
		return res, err
	}

	hazards, err := hazardFeatures(scn.Hazards)
	if err != nil {
		return res, err
	}
	if err := add("hazards", "fill", hazards, map[string]any{"fill-opacity": 0.5}); err != nil {
		return res, err
	}

	return res, nil
}

func waypointFeatures(wps []core.Waypoint) (featureCollection, error) {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, wp := range wps {
		pt, err := geo.Point(core.Position2D{X: wp.Position.X, Y: wp.Position.Y})
		if err != nil {
			return fc, fmt.Errorf("waypoint %s: %w", wp.ID, err)
		}
		g, err := json.Marshal(pt.AsGeometry())
		if err != nil {
			return fc, fmt.Errorf("encoding waypoint %s: %w", wp.ID, err)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"id": wp.ID, "name": wp.Name, "elevation": wp.Position.Z},
			Geometry:   g,
		})
	}
	return fc, nil
}

func routeFeatures(routes []core.Route) (featureCollection, error) {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, r := range routes {
		ls, err := geo.LineString(r.Points)
		if err != nil {
			return fc, fmt.Errorf("route %s: %w", r.ID, err)
		}
		g, err := json.Marshal(ls.AsGeometry())
		if err != nil {
			return fc, fmt.Errorf("encoding route %s: %w", r.ID, err)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"id": r.ID, "name": r.Name},
			Geometry:   g,
		})
	}
	return fc, nil
}

func buildingFeatures(bldgs []core.Building) (featureCollection, error) {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, b := range bldgs {
		poly, err := geo.Polygon(b.Footprint)
		if err != nil {
			return fc, fmt.Errorf("building %s: %w", b.ID, err)
		}
		g, err := json.Marshal(poly.AsGeometry())
		if err != nil {
			return fc, fmt.Errorf("encoding building %s: %w", b.ID, err)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"id": b.ID, "label": b.Label},
			Geometry:   g,
		})
	}
	return fc, nil
}

func hazardFeatures(hazards []core.HazardZone) (featureCollection, error) {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, hz := range hazards {
		poly, err := geo.Polygon(hz.Area)
		if err != nil {
			return fc, fmt.Errorf("hazard %s: %w", hz.ID, err)
		}
		g, err := json.Marshal(poly.AsGeometry())
		if err != nil {
			return fc, fmt.Errorf("encoding hazard %s: %w", hz.ID, err)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"id": hz.ID, "kind": string(hz.Kind), "severity": hz.Severity},
			Geometry:   g,
		})
	}
	return fc, nil
}
