// FilePath: internal/models/models.sensor.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSON is a wrapper around map[string]interface{} for database storage
type JSON map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j)
}

// Sensor is one measured channel (e.g. temperature) attached to a box.
// LastValue/LastValueAt cache the most recent measurement so box listings
// do not need to touch the timeseries database.
type Sensor struct {
	ID          string    `json:"id" db:"id"`
	BoxID       string    `json:"box_id" db:"box_id"`
	Title       string    `json:"title" db:"title"`
	Unit        string    `json:"unit" db:"unit"`
	SensorType  string    `json:"sensor_type" db:"sensor_type"`
	Icon        string    `json:"icon,omitempty" db:"icon"`
	LastValue   float64   `json:"last_value" db:"last_value"`
	LastValueAt time.Time `json:"last_value_at" db:"last_value_at"`
	Metadata    JSON      `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
