package model

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Zone is a route eligibility area, exchanged as a GeoJSON MultiPolygon
// (a plain Polygon is accepted and widened).
type Zone orb.MultiPolygon

func (z Zone) MultiPolygon() orb.MultiPolygon { return orb.MultiPolygon(z) }

func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(orb.MultiPolygon(z)))
}

func (z *Zone) UnmarshalJSON(b []byte) error {
	g, err := geojson.UnmarshalGeometry(b)
	if err != nil {
		return fmt.Errorf("zone: %w", err)
	}
	switch geom := g.Geometry().(type) {
	case orb.MultiPolygon:
		*z = Zone(geom)
	case orb.Polygon:
		*z = Zone(orb.MultiPolygon{geom})
	default:
		return fmt.Errorf("zone: unsupported geometry %s", g.Type)
	}
	return nil
}
