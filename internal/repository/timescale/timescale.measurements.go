// FilePath: internal/repository/timescale/timescale.measurements.go
package timescale

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/geo"
	"github.com/opensensemap/osem/internal/models"
	"github.com/opensensemap/osem/internal/repository"
)

// rawMeasurementLimit caps unbounded raw queries, roughly 2.5 days of
// minute-resolution data.
const rawMeasurementLimit = 3600

// aggregateViews maps aggregation keywords to the continuous-aggregate
// views they are served from. Raw is deliberately absent: anything not in
// this map falls through to the raw table.
var aggregateViews = map[models.Aggregation]string{
	models.Aggregation10m:     "measurements_10m",
	models.AggregationHourly:  "measurements_1h",
	models.AggregationDaily:   "measurements_1d",
	models.AggregationMonthly: "measurements_1m",
	models.AggregationYearly:  "measurements_1y",
}

type MeasurementRepo struct {
	TimescaleBaseRepo
}

func NewMeasurementRepository(db database.DB) (*MeasurementRepo, error) {
	repo := &MeasurementRepo{TimescaleBaseRepo: TimescaleBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewMeasurementRepositoryNoInit skips schema creation. Used by tests that
// plug in a mocked connection.
func NewMeasurementRepositoryNoInit(db database.DB) *MeasurementRepo {
	return &MeasurementRepo{TimescaleBaseRepo: TimescaleBaseRepo{db: db}}
}

func (r *MeasurementRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			box_id TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			time TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			sensor_id TEXT NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			location_id TEXT
		)`,
		`SELECT create_hypertable('measurements', 'time',
			chunk_time_interval => INTERVAL '1 day',
			if_not_exists => TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_sensor_time
			ON measurements(sensor_id, time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_box_time
			ON locations(box_id, time ASC)`,
	}

	// One continuous aggregate per tier; each serves the identically named
	// aggregation keyword.
	buckets := []struct {
		view     string
		interval string
	}{
		{"measurements_10m", "10 minutes"},
		{"measurements_1h", "1 hour"},
		{"measurements_1d", "1 day"},
		{"measurements_1m", "1 month"},
		{"measurements_1y", "1 year"},
	}
	for _, b := range buckets {
		queries = append(queries, fmt.Sprintf(`
			CREATE MATERIALIZED VIEW IF NOT EXISTS %s
			WITH (timescaledb.continuous) AS
			SELECT sensor_id,
				time_bucket('%s', time) AS time,
				AVG(value) AS value
			FROM measurements
			GROUP BY sensor_id, time_bucket('%s', time)`,
			b.view, b.interval, b.interval))
	}

	for _, query := range queries {
		_, err := r.db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}

	return nil
}

func (r *MeasurementRepo) Insert(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (sensor_id, time, value, location_id)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.GetDB().ExecContext(ctx, query, m.SensorID, m.Time, m.Value, m.LocationID)
	if err != nil {
		return errors.NewDatabaseError("failed to insert measurement", err)
	}
	return nil
}

func (r *MeasurementRepo) InsertBatch(ctx context.Context, ms []models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	query := `
		INSERT INTO measurements (sensor_id, time, value, location_id)
		VALUES (:sensor_id, :time, :value, :location_id)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, ms)
	if err != nil {
		return errors.NewDatabaseError("failed to insert measurements", err)
	}
	return nil
}

// GetSensorMeasurements routes the query to the view named by the
// aggregation keyword, or to the raw table for "raw" and anything
// unrecognized. No validation happens here: callers validate the keyword
// at the HTTP boundary, and garbage deliberately degrades to the raw path
// instead of erroring.
func (r *MeasurementRepo) GetSensorMeasurements(ctx context.Context, sensorID string, agg models.Aggregation, from, to *time.Time) ([]models.Measurement, error) {
	if view, ok := aggregateViews[agg]; ok {
		return r.getAggregated(ctx, view, sensorID, from, to)
	}
	return r.getRaw(ctx, sensorID, from, to)
}

func (r *MeasurementRepo) getAggregated(ctx context.Context, view, sensorID string, from, to *time.Time) ([]models.Measurement, error) {
	query := `SELECT sensor_id, time, value FROM ` + view + ` WHERE sensor_id = $1`
	args := []interface{}{sensorID}

	if from != nil {
		args = append(args, *from)
		query += ` AND time >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND time <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY time DESC`

	measurements := []models.Measurement{}
	err := r.db.GetDB().SelectContext(ctx, &measurements, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get aggregated measurements", err)
	}
	return measurements, nil
}

func (r *MeasurementRepo) getRaw(ctx context.Context, sensorID string, from, to *time.Time) ([]models.Measurement, error) {
	query := `
		SELECT m.sensor_id, m.time, m.value, m.location_id, l.x, l.y
		FROM measurements m
		LEFT JOIN locations l ON l.id = m.location_id
		WHERE m.sensor_id = $1`
	args := []interface{}{sensorID}

	if from != nil {
		args = append(args, *from)
		query += ` AND m.time >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND m.time <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY m.time DESC`

	// Without a date range the result is capped to bound response size.
	if from == nil && to == nil {
		query += ` LIMIT ` + strconv.Itoa(rawMeasurementLimit)
	}

	measurements := []models.Measurement{}
	err := r.db.GetDB().SelectContext(ctx, &measurements, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get measurements", err)
	}
	return measurements, nil
}

func (r *MeasurementRepo) GetLatest(ctx context.Context, sensorID string) (*models.Measurement, error) {
	m := &models.Measurement{}
	query := `
		SELECT sensor_id, time, value, location_id
		FROM measurements
		WHERE sensor_id = $1
		ORDER BY time DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, m, query, sensorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no measurements for sensor", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest measurement", err)
	}
	return m, nil
}

func (r *MeasurementRepo) DeleteBySensorIDs(ctx context.Context, sensorIDs []string, from, to *time.Time) error {
	query := `DELETE FROM measurements WHERE sensor_id = ANY($1)`
	args := []interface{}{pq.Array(sensorIDs)}

	if from != nil {
		args = append(args, *from)
		query += ` AND time >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND time <= $` + strconv.Itoa(len(args))
	}

	result, err := r.db.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewDatabaseError("failed to delete measurements", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[TimeseriesDB] Deleted %d measurements for %d sensors", rows, len(sensorIDs))
	return nil
}

func (r *MeasurementRepo) InsertLocation(ctx context.Context, loc *models.Location) error {
	query := `
		INSERT INTO locations (id, box_id, x, y, time)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.GetDB().ExecContext(ctx, query, loc.ID, loc.BoxID, loc.X, loc.Y, loc.Time)
	if err != nil {
		return errors.NewDatabaseError("failed to insert location", err)
	}
	return nil
}

// GetLocations returns a box's location fixes ascending by time, the order
// the trip segmenter expects.
func (r *MeasurementRepo) GetLocations(ctx context.Context, boxID string, from, to *time.Time) ([]models.Location, error) {
	query := `SELECT id, box_id, x, y, time FROM locations WHERE box_id = $1`
	args := []interface{}{boxID}

	if from != nil {
		args = append(args, *from)
		query += ` AND time >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += ` AND time <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY time ASC`

	locations := []models.Location{}
	err := r.db.GetDB().SelectContext(ctx, &locations, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get locations", err)
	}
	return locations, nil
}

func (r *MeasurementRepo) DeleteByBox(ctx context.Context, boxID string, sensorIDs []string) error {
	if len(sensorIDs) > 0 {
		if err := r.DeleteBySensorIDs(ctx, sensorIDs, nil, nil); err != nil {
			return err
		}
	}

	_, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM locations WHERE box_id = $1`, boxID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete locations for box", err)
	}
	return nil
}

// Stream opens a keyset-paginated cursor over the raw table. Each Next call
// fetches at most batchSize rows, so memory stays bounded by one batch no
// matter how large the requested range is.
func (r *MeasurementRepo) Stream(ctx context.Context, sensorIDs []string, from, to time.Time, bbox *geo.BoundingBox, batchSize int) repository.MeasurementStream {
	if batchSize <= 0 {
		batchSize = 2500
	}
	return &measurementStream{
		repo:      r,
		sensorIDs: sensorIDs,
		from:      from,
		to:        to,
		bbox:      bbox,
		batchSize: batchSize,
	}
}

type measurementStream struct {
	repo      *MeasurementRepo
	sensorIDs []string
	from      time.Time
	to        time.Time
	bbox      *geo.BoundingBox
	batchSize int

	started    bool
	done       bool
	lastTime   time.Time
	lastSensor string
}

func (s *measurementStream) Next(ctx context.Context) ([]models.Measurement, error) {
	if s.done {
		return nil, io.EOF
	}

	query := `
		SELECT m.sensor_id, m.time, m.value, m.location_id, l.x, l.y
		FROM measurements m
		LEFT JOIN locations l ON l.id = m.location_id
		WHERE m.sensor_id = ANY($1) AND m.time <= $2`
	args := []interface{}{pq.Array(s.sensorIDs), s.to}

	if s.started {
		// Composite keyset cursor so rows sharing a timestamp are not
		// skipped between batches.
		args = append(args, s.lastTime, s.lastSensor)
		query += fmt.Sprintf(` AND (m.time, m.sensor_id) > ($%d, $%d)`, len(args)-1, len(args))
	} else {
		args = append(args, s.from)
		query += ` AND m.time >= $` + strconv.Itoa(len(args))
	}

	if s.bbox != nil {
		args = append(args, s.bbox.MinX, s.bbox.MaxX, s.bbox.MinY, s.bbox.MaxY)
		query += fmt.Sprintf(` AND l.x BETWEEN $%d AND $%d AND l.y BETWEEN $%d AND $%d`,
			len(args)-3, len(args)-2, len(args)-1, len(args))
	}

	args = append(args, s.batchSize)
	query += ` ORDER BY m.time ASC, m.sensor_id ASC LIMIT $` + strconv.Itoa(len(args))

	batch := []models.Measurement{}
	err := s.repo.db.GetDB().SelectContext(ctx, &batch, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to fetch measurement batch", err)
	}

	if len(batch) == 0 {
		s.done = true
		return nil, io.EOF
	}

	last := batch[len(batch)-1]
	s.started = true
	s.lastTime = last.Time
	s.lastSensor = last.SensorID
	if len(batch) < s.batchSize {
		s.done = true
	}
	return batch, nil
}
