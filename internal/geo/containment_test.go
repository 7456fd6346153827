package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/model"
)

func TestPlanarContains(t *testing.T) {
	zone := Rect(35.4, -87.1, 35.7, -86.8)
	g := Planar{}

	assert.True(t, g.Contains(model.Coordinate{Latitude: 35.4992, Longitude: -86.8578}, []model.Zone{zone}))
	assert.False(t, g.Contains(model.Coordinate{Latitude: 35.9266, Longitude: -86.8677}, []model.Zone{zone}))
	assert.False(t, g.Contains(model.Coordinate{Latitude: 35.5, Longitude: -86.9}, nil))
}

func TestPlanarContainsAnyZone(t *testing.T) {
	a := Rect(0, 0, 1, 1)
	b := Rect(10, 10, 11, 11)
	assert.True(t, Planar{}.Contains(model.Coordinate{Latitude: 10.5, Longitude: 10.5}, []model.Zone{a, b}))
}

func TestZoneGeoJSONRoundTrip(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[-87.1,35.4],[-86.8,35.4],[-86.8,35.7],[-87.1,35.7],[-87.1,35.4]]]}`
	var z model.Zone
	require.NoError(t, json.Unmarshal([]byte(raw), &z))
	require.Len(t, z.MultiPolygon(), 1)

	out, err := json.Marshal(z)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"MultiPolygon"`)

	var back model.Zone
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, Planar{}.Contains(model.Coordinate{Latitude: 35.5, Longitude: -87.0}, []model.Zone{back}))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"Point","coordinates":[1,2]}`), &z))
}
