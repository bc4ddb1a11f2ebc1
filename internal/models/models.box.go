// FilePath: internal/models/models.box.go
package models

import "time"

type Exposure string

const (
	ExposureIndoor  Exposure = "indoor"
	ExposureOutdoor Exposure = "outdoor"
	ExposureMobile  Exposure = "mobile"
	ExposureUnknown Exposure = "unknown"
)

// ValidExposure reports whether e is one of the supported exposures.
func ValidExposure(e Exposure) bool {
	switch e {
	case ExposureIndoor, ExposureOutdoor, ExposureMobile, ExposureUnknown:
		return true
	}
	return false
}

type BoxStatus string

const (
	StatusActive   BoxStatus = "active"
	StatusInactive BoxStatus = "inactive"
	StatusOld      BoxStatus = "old"
)

// Box is a registered physical sensor station. A box is owned by exactly
// one user at a time; ownership moves via the transfer claim workflow.
type Box struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description" db:"description"`
	Exposure          Exposure  `json:"exposure" db:"exposure"`
	Status            BoxStatus `json:"status" db:"status"`
	Model             string    `json:"model" db:"model"`
	OwnerID           string    `json:"owner_id" db:"owner_id"`
	AccessToken       string    `json:"access_token,omitempty" db:"access_token" readxs:"owner,system,admin" writexs:"system"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	LastMeasurementAt time.Time `json:"last_measurement_at" db:"last_measurement_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// BoxComment is a user note attached to a box.
type BoxComment struct {
	ID        string    `json:"id" db:"id"`
	BoxID     string    `json:"box_id" db:"box_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
