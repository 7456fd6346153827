// Package geo answers zone containment questions for route eligibility.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"vrpadapter/internal/model"
)

// Containment reports whether a coordinate lies inside any of the zones.
// An empty zone set contains nothing.
type Containment interface {
	Contains(c model.Coordinate, zones []model.Zone) bool
}

// Planar tests containment on lon/lat treated as a plane, which is accurate
// enough for city-scale zones.
type Planar struct{}

func (Planar) Contains(c model.Coordinate, zones []model.Zone) bool {
	pt := Point(c)
	for _, z := range zones {
		mp := z.MultiPolygon()
		if !mp.Bound().Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(mp, pt) {
			return true
		}
	}
	return false
}

// Point converts a coordinate to an orb point (lon, lat).
func Point(c model.Coordinate) orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Rect builds a single rectangular zone. Handy for configs and tests.
func Rect(minLat, minLon, maxLat, maxLon float64) model.Zone {
	ring := orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}
	return model.Zone(orb.MultiPolygon{orb.Polygon{ring}})
}
