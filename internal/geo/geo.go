// FilePath: internal/geo/geo.go
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/opensensemap/osem/internal/models"
)

// BoundingBox is a WGS84 axis-aligned box: west, south, east, north.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// ParseBoundingBox parses the four comma-separated numbers of a bbox
// query parameter.
func ParseBoundingBox(s string) (*BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have exactly 4 comma-separated values, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q is not a number", part)
		}
		vals[i] = v
	}

	bbox := &BoundingBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if bbox.MinX > bbox.MaxX || bbox.MinY > bbox.MaxY {
		return nil, fmt.Errorf("bbox min corner must be south-west of max corner")
	}
	return bbox, nil
}

// Contains reports whether the point (x, y) lies inside the box, borders
// included.
func (b *BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Bound converts the box to an orb.Bound.
func (b *BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinX, b.MinY},
		Max: orb.Point{b.MaxX, b.MaxY},
	}
}

// TrackFeature renders an ordered sequence of location fixes as a GeoJSON
// Feature with LineString geometry and a properties.timestamps array
// parallel to the coordinates.
func TrackFeature(locations []models.Location) *geojson.Feature {
	line := make(orb.LineString, 0, len(locations))
	timestamps := make([]string, 0, len(locations))
	for _, loc := range locations {
		line = append(line, orb.Point{loc.X, loc.Y})
		timestamps = append(timestamps, loc.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	feature := geojson.NewFeature(line)
	feature.Properties["timestamps"] = timestamps
	return feature
}
