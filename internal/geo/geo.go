// internal/geo/geo.go

// Package geo converts between geographic (EPSG:4326) and web-mercator
// (EPSG:3857) coordinates and builds validated geometries from scenario
// shapes. Fixture data is always stored in 3857 so payloads can be fed
// straight to the dashboard without projection at load time.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/hazmap/simkit/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Project4326To3857 converts a lng/lat pair to web-mercator meters.
func Project4326To3857(lngLat core.LngLat) core.Position2D {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lngLat.Lng, lngLat.Lat, 0)
	return core.Position2D{X: x, Y: y}
}

// Project4326To3857Z converts a lng/lat pair plus elevation to a 3D
// web-mercator position. Elevation passes through untouched.
func Project4326To3857Z(lngLat core.LngLat, elev float64) core.Position3D {
	p := Project4326To3857(lngLat)
	return core.Position3D{X: p.X, Y: p.Y, Z: elev}
}

// Position3DFromString parses a "x,y" or "x,y,elev" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(coordsSplit[0], 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(coordsSplit[1], 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var elev float64
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(coordsSplit[2], 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
	}
	return core.Position3D{X: x, Y: y, Z: elev}, nil
}

// Point builds a simplefeatures Point from a projected position.
func Point(p core.Position2D) (geom.Point, error) {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
}

// LineString builds a simplefeatures LineString from a polyline.
func LineString(poly core.Polyline) (geom.LineString, error) {
	if len(poly) < 2 {
		return geom.LineString{}, errors.New("polyline must have at least 2 points")
	}
	flat := make([]float64, 0, len(poly)*2)
	for _, p := range poly {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// Polygon builds a validated simplefeatures Polygon from a footprint
// ring. The ring is closed automatically when the last point does not
// repeat the first.
func Polygon(ring core.Ring) (geom.Polygon, error) {
	if len(ring) < 3 {
		return geom.Polygon{}, errors.New("ring must have at least 3 points")
	}
	closed := ring
	if ring[0] != ring[len(ring)-1] {
		closed = append(append(core.Ring{}, ring...), ring[0])
	}
	flat := make([]float64, 0, len(closed)*2)
	for _, p := range closed {
		flat = append(flat, p.X, p.Y)
	}
	shell, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, err
	}
	return geom.NewPolygon([]geom.LineString{shell})
}
