// FilePath: internal/models/models.measurement.go
package models

import "time"

// Aggregation names a pre-computed rollup tier of raw measurements.
type Aggregation string

const (
	AggregationRaw     Aggregation = "raw"
	Aggregation10m     Aggregation = "10m"
	AggregationHourly  Aggregation = "1h"
	AggregationDaily   Aggregation = "1d"
	AggregationMonthly Aggregation = "1m"
	AggregationYearly  Aggregation = "1y"
)

// Aggregations lists all supported aggregation keywords, raw included.
var Aggregations = []Aggregation{
	AggregationRaw,
	Aggregation10m,
	AggregationHourly,
	AggregationDaily,
	AggregationMonthly,
	AggregationYearly,
}

// ValidAggregation reports whether a is a supported aggregation keyword.
func ValidAggregation(a Aggregation) bool {
	for _, known := range Aggregations {
		if a == known {
			return true
		}
	}
	return false
}

// Measurement is one immutable (time, value) observation from a sensor.
// Rows are only ever bulk-inserted or deleted by range, never updated.
// X/Y are filled from the joined location for mobile boxes and stay nil
// for stationary ones and for aggregated rows.
type Measurement struct {
	SensorID   string    `json:"sensor_id" db:"sensor_id"`
	Time       time.Time `json:"time" db:"time"`
	Value      float64   `json:"value" db:"value"`
	LocationID *string   `json:"location_id,omitempty" db:"location_id"`
	X          *float64  `json:"x,omitempty" db:"x"`
	Y          *float64  `json:"y,omitempty" db:"y"`
}

// Location is a point fix recorded alongside measurements of a mobile box.
// X is longitude, Y latitude.
type Location struct {
	ID    string    `json:"id" db:"id"`
	BoxID string    `json:"box_id" db:"box_id"`
	X     float64   `json:"x" db:"x"`
	Y     float64   `json:"y" db:"y"`
	Time  time.Time `json:"time" db:"time"`
}
