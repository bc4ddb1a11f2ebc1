package cleanup

import (
	"context"
	"fmt"

	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/repository"
)

// CleanupService coordinates deletion of hierarchical data
type CleanupService struct {
	boxes        repository.BoxRepository
	sensors      repository.SensorRepository
	measurements repository.MeasurementRepository
	claims       repository.ClaimRepository
	comments     repository.BoxCommentRepository
	events       *nuts.EventEmitter
}

// New creates a new CleanupService
func New(
	boxes repository.BoxRepository,
	sensors repository.SensorRepository,
	measurements repository.MeasurementRepository,
	claims repository.ClaimRepository,
	comments repository.BoxCommentRepository,
) *CleanupService {
	return &CleanupService{
		boxes:        boxes,
		sensors:      sensors,
		measurements: measurements,
		claims:       claims,
		comments:     comments,
		events:       nuts.NewEventEmitter(),
	}
}

// DeleteBox deletes a box with all its sensors, measurements, locations,
// claims and comments. App-database rows go in one transaction. Timeseries
// rows live in a separate database and are removed first; re-deleting
// them is harmless if the transaction rolls back.
func (s *CleanupService) DeleteBox(ctx context.Context, boxID string) error {
	sensors, err := s.sensors.ListByBox(ctx, boxID)
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}

	sensorIDs := make([]string, 0, len(sensors))
	for _, sensor := range sensors {
		sensorIDs = append(sensorIDs, sensor.ID)
	}

	if err := s.measurements.DeleteByBox(ctx, boxID, sensorIDs); err != nil {
		return fmt.Errorf("failed to delete measurements: %w", err)
	}

	tx, err := s.boxes.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if err := s.claims.DeleteByBoxTx(ctx, tx, boxID); err != nil {
		return fmt.Errorf("failed to delete claims: %w", err)
	}

	if err := s.comments.DeleteByBoxTx(ctx, tx, boxID); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}

	if err := s.sensors.DeleteByBoxTx(ctx, tx, boxID); err != nil {
		return fmt.Errorf("failed to delete sensors: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM boxes WHERE id = $1`, boxID); err != nil {
		return fmt.Errorf("failed to delete box: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, id := range sensorIDs {
		s.events.Emit("sensor.deleted", id)
	}
	s.events.Emit("comments.deleted", boxID)
	s.events.Emit("box.deleted", boxID)
	return nil
}

// DeleteSensor deletes a sensor and all its measurement rows
func (s *CleanupService) DeleteSensor(ctx context.Context, sensorID string) error {
	if err := s.measurements.DeleteBySensorIDs(ctx, []string{sensorID}, nil, nil); err != nil {
		return fmt.Errorf("failed to delete measurements: %w", err)
	}

	if err := s.sensors.Delete(ctx, sensorID); err != nil {
		return fmt.Errorf("failed to delete sensor: %w", err)
	}

	s.events.Emit("sensor.deleted", sensorID)
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
