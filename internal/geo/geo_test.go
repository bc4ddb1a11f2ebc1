package geo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/models"
)

func TestParseBoundingBox(t *testing.T) {
	bbox, err := ParseBoundingBox("7.5,51.9,7.7,52.0")
	require.NoError(t, err)
	assert.Equal(t, &BoundingBox{MinX: 7.5, MinY: 51.9, MaxX: 7.7, MaxY: 52.0}, bbox)
}

func TestParseBoundingBoxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few values", "7.5,51.9"},
		{"too many values", "1,2,3,4,5"},
		{"not a number", "a,b,c,d"},
		{"inverted corners", "7.7,51.9,7.5,52.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBoundingBox(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestContains(t *testing.T) {
	bbox := &BoundingBox{MinX: 7.5, MinY: 51.9, MaxX: 7.7, MaxY: 52.0}

	assert.True(t, bbox.Contains(7.6, 51.95))
	assert.True(t, bbox.Contains(7.5, 51.9), "border counts as inside")
	assert.False(t, bbox.Contains(7.4, 51.95))
	assert.False(t, bbox.Contains(7.6, 52.1))
}

func TestTrackFeature(t *testing.T) {
	locations := []models.Location{
		{X: 7.6, Y: 51.9, Time: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{X: 7.61, Y: 51.91, Time: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)},
	}

	feature := TrackFeature(locations)
	raw, err := feature.MarshalJSON()
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string       `json:"type"`
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Timestamps []string `json:"timestamps"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "Feature", decoded.Type)
	assert.Equal(t, "LineString", decoded.Geometry.Type)
	require.Len(t, decoded.Geometry.Coordinates, 2)
	assert.Equal(t, [2]float64{7.6, 51.9}, decoded.Geometry.Coordinates[0])

	// Timestamps stay parallel to the coordinates.
	require.Len(t, decoded.Properties.Timestamps, 2)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", decoded.Properties.Timestamps[0])
}
