package osemservice

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/geo"
	"github.com/opensensemap/osem/internal/models"
	"github.com/opensensemap/osem/internal/repository"
)

// RecordMeasurement ingests a single measurement for a sensor of the given
// box. Mobile boxes may attach a location fix; it is stored once and
// referenced by the measurement. Ingest is authenticated by the box access
// token, not a user session.
func (s *OsemService) RecordMeasurement(ctx context.Context, boxID, accessToken string, m *models.Measurement, loc *models.Location) error {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if box.AccessToken == "" || box.AccessToken != accessToken {
		return errors.NewAuthError("invalid box access token", nil)
	}

	sensor, err := s.Sensors.Get(ctx, m.SensorID)
	if err != nil {
		return err
	}
	if sensor.BoxID != boxID {
		return errors.NewValidationError("sensor does not belong to box", nil).WithField("sensor")
	}

	if m.Time.IsZero() {
		m.Time = s.now().UTC()
	}

	if loc != nil {
		if box.Exposure != models.ExposureMobile {
			return errors.NewValidationError("location updates require a mobile box", nil).WithField("location")
		}
		loc.ID = nuts.NID("loc", 12)
		loc.BoxID = boxID
		if loc.Time.IsZero() {
			loc.Time = m.Time
		}
		if err := s.Measurements.InsertLocation(ctx, loc); err != nil {
			return err
		}
		m.LocationID = &loc.ID
	}

	if err := s.Measurements.Insert(ctx, m); err != nil {
		return err
	}

	// Secondary bookkeeping is best-effort, the measurement itself is stored.
	if err := s.Sensors.UpdateLastValue(ctx, sensor.ID, m.Value, m.Time); err != nil {
		nuts.L.Warnf("[OsemService.RecordMeasurement] last value update failed for sensor (%s): %v", sensor.ID, err)
	}
	if err := s.Boxes.UpdateLastMeasurementAt(ctx, boxID, m.Time); err != nil {
		nuts.L.Warnf("[OsemService.RecordMeasurement] last measurement update failed for box (%s): %v", boxID, err)
	}
	if s.latest != nil {
		if err := s.latest.Set(ctx, m); err != nil {
			nuts.L.Warnf("[OsemService.RecordMeasurement] latest cache update failed for sensor (%s): %v", sensor.ID, err)
		}
	}
	return nil
}

// RecordMeasurementBatch ingests multiple measurements in one call. All
// sensors must belong to the box.
func (s *OsemService) RecordMeasurementBatch(ctx context.Context, boxID, accessToken string, ms []models.Measurement) error {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if box.AccessToken == "" || box.AccessToken != accessToken {
		return errors.NewAuthError("invalid box access token", nil)
	}

	sensors, err := s.Sensors.ListByBox(ctx, boxID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(sensors))
	for _, sensor := range sensors {
		known[sensor.ID] = true
	}

	var lastAt time.Time
	for i := range ms {
		if !known[ms[i].SensorID] {
			return errors.NewValidationError("sensor does not belong to box", nil).WithField("sensor")
		}
		if ms[i].Time.IsZero() {
			ms[i].Time = s.now().UTC()
		}
		if ms[i].Time.After(lastAt) {
			lastAt = ms[i].Time
		}
	}

	if err := s.Measurements.InsertBatch(ctx, ms); err != nil {
		return err
	}
	if !lastAt.IsZero() {
		if err := s.Boxes.UpdateLastMeasurementAt(ctx, boxID, lastAt); err != nil {
			nuts.L.Warnf("[OsemService.RecordMeasurementBatch] last measurement update failed for box (%s): %v", boxID, err)
		}
	}
	return nil
}

// GetSensorMeasurements reads the time series for one sensor at the given
// aggregation tier.
func (s *OsemService) GetSensorMeasurements(ctx context.Context, boxID, sensorID string, agg models.Aggregation, from, to *time.Time) ([]models.Measurement, error) {
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if sensor.BoxID != boxID {
		return nil, errors.NewNotFoundError("sensor not found for box", nil)
	}
	return s.Measurements.GetSensorMeasurements(ctx, sensorID, agg, from, to)
}

// GetLatestMeasurement returns the most recent value for a sensor, served
// from the cache when possible.
func (s *OsemService) GetLatestMeasurement(ctx context.Context, sensorID string) (*models.Measurement, error) {
	if s.latest != nil {
		if m, err := s.latest.Get(ctx, sensorID); err == nil && m != nil {
			return m, nil
		}
	}
	m, err := s.Measurements.GetLatest(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if s.latest != nil && m != nil {
		if err := s.latest.Set(ctx, m); err != nil {
			nuts.L.Warnf("[OsemService.GetLatestMeasurement] cache backfill failed for sensor (%s): %v", sensorID, err)
		}
	}
	return m, nil
}

// DeleteSensorMeasurements removes measurements of a sensor, optionally
// bounded by a time range. Requires box ownership.
func (s *OsemService) DeleteSensorMeasurements(ctx context.Context, boxID, sensorID string, from, to *time.Time) error {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return err
	}
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return err
	}
	if sensor.BoxID != boxID {
		return errors.NewNotFoundError("sensor not found for box", nil)
	}
	if err := s.Measurements.DeleteBySensorIDs(ctx, []string{sensorID}, from, to); err != nil {
		return err
	}
	if s.latest != nil {
		s.latest.Invalidate(ctx, sensorID)
	}
	return nil
}

// ExportSensors resolves the sensors covered by a multi-box export request
// and opens a measurement stream over them. Boxes without a matching
// phenomenon contribute no sensors.
func (s *OsemService) ExportSensors(ctx context.Context, boxIDs []string, phenomenon string, from, to time.Time, bbox *geo.BoundingBox, batchSize int) (repository.MeasurementStream, map[string]*models.Sensor, error) {
	selected := make(map[string]*models.Sensor)
	sensorIDs := make([]string, 0)

	for _, boxID := range boxIDs {
		sensors, err := s.Sensors.ListByBox(ctx, boxID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, nil, err
		}
		for _, sensor := range sensors {
			if phenomenon != "" && sensor.Title != phenomenon {
				continue
			}
			selected[sensor.ID] = sensor
			sensorIDs = append(sensorIDs, sensor.ID)
		}
	}

	if len(sensorIDs) == 0 {
		return nil, nil, errors.NewNotFoundError("no matching sensors for export", nil)
	}

	stream := s.Measurements.Stream(ctx, sensorIDs, from, to, bbox, batchSize)
	return stream, selected, nil
}
