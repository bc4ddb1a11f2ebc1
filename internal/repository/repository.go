// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/geo"
	"github.com/opensensemap/osem/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// BoxRepository defines the interface for box data operations
type BoxRepository interface {
	database.Repository
	Create(ctx context.Context, box *models.Box) error
	Get(ctx context.Context, id string) (*models.Box, error)
	Update(ctx context.Context, box *models.Box) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.BoxFilters, offset, limit int) ([]*models.Box, error)
	UpdateLastMeasurementAt(ctx context.Context, id string, t time.Time) error
	UpdateOwnerTx(ctx context.Context, tx database.Transaction, id, ownerID string) error
}

// SensorRepository defines the interface for sensor data operations
type SensorRepository interface {
	database.Repository
	Create(ctx context.Context, sensor *models.Sensor) error
	Get(ctx context.Context, id string) (*models.Sensor, error)
	Update(ctx context.Context, sensor *models.Sensor) error
	Delete(ctx context.Context, id string) error
	ListByBox(ctx context.Context, boxID string) ([]*models.Sensor, error)
	UpdateLastValue(ctx context.Context, id string, value float64, t time.Time) error
	DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error
}

// MeasurementStream yields time-ordered measurement batches. Next returns
// io.EOF once the stream is exhausted; callers must stop iterating on any
// error.
type MeasurementStream interface {
	Next(ctx context.Context) ([]models.Measurement, error)
}

// MeasurementRepository defines the interface for the measurement time series
type MeasurementRepository interface {
	database.Repository
	Insert(ctx context.Context, m *models.Measurement) error
	InsertBatch(ctx context.Context, ms []models.Measurement) error
	// GetSensorMeasurements routes the query to the aggregation tier named
	// by agg, falling back to the raw table for "raw" or unrecognized
	// keywords. Rows come back time-descending.
	GetSensorMeasurements(ctx context.Context, sensorID string, agg models.Aggregation, from, to *time.Time) ([]models.Measurement, error)
	// Stream opens a batch cursor over the raw table for the given sensors
	// and time range, ordered ascending by time.
	Stream(ctx context.Context, sensorIDs []string, from, to time.Time, bbox *geo.BoundingBox, batchSize int) MeasurementStream
	GetLatest(ctx context.Context, sensorID string) (*models.Measurement, error)
	DeleteBySensorIDs(ctx context.Context, sensorIDs []string, from, to *time.Time) error
	InsertLocation(ctx context.Context, loc *models.Location) error
	GetLocations(ctx context.Context, boxID string, from, to *time.Time) ([]models.Location, error)
	DeleteByBox(ctx context.Context, boxID string, sensorIDs []string) error
}

// ClaimRepository defines the interface for transfer claim operations
type ClaimRepository interface {
	database.Repository
	Create(ctx context.Context, claim *models.Claim) error
	GetByToken(ctx context.Context, token string) (*models.Claim, error)
	GetActiveByBox(ctx context.Context, boxID string, now time.Time) (*models.Claim, error)
	Delete(ctx context.Context, id string) error
	DeleteTx(ctx context.Context, tx database.Transaction, id string) error
	DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error
}

// BoxCommentRepository defines the interface for box comment operations
type BoxCommentRepository interface {
	database.Repository
	Create(ctx context.Context, comment *models.BoxComment) error
	Get(ctx context.Context, id string) (*models.BoxComment, error)
	List(ctx context.Context, boxID string, offset, limit int) ([]*models.BoxComment, error)
	Delete(ctx context.Context, id string) error
	DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error
}
