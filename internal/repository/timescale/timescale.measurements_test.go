package timescale

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/models"
)

func newTestRepo(t *testing.T) (*MeasurementRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewMeasurementRepositoryNoInit(database.Wrap(sqlxDB)), mock
}

func measurementRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"sensor_id", "time", "value"})
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows.AddRow("sensor1", base.Add(time.Duration(i)*time.Hour), float64(i))
	}
	return rows
}

func rawRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"sensor_id", "time", "value", "location_id", "x", "y"})
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows.AddRow("sensor1", base.Add(time.Duration(i)*time.Minute), float64(i), nil, nil, nil)
	}
	return rows
}

func TestGetSensorMeasurementsRoutesToViews(t *testing.T) {
	tests := []struct {
		agg  models.Aggregation
		view string
	}{
		{models.Aggregation10m, "measurements_10m"},
		{models.AggregationHourly, "measurements_1h"},
		{models.AggregationDaily, "measurements_1d"},
		{models.AggregationMonthly, "measurements_1m"},
		{models.AggregationYearly, "measurements_1y"},
	}

	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			repo, mock := newTestRepo(t)

			mock.ExpectQuery(`SELECT sensor_id, time, value FROM ` + tt.view + ` WHERE sensor_id = \$1 ORDER BY time DESC`).
				WithArgs("sensor1").
				WillReturnRows(measurementRows(2))

			ms, err := repo.GetSensorMeasurements(context.Background(), "sensor1", tt.agg, nil, nil)
			require.NoError(t, err)
			assert.Len(t, ms, 2)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetSensorMeasurementsAggregatedRange(t *testing.T) {
	repo, mock := newTestRepo(t)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT sensor_id, time, value FROM measurements_1d WHERE sensor_id = \$1 AND time >= \$2 AND time <= \$3 ORDER BY time DESC`).
		WithArgs("sensor1", from, to).
		WillReturnRows(measurementRows(1))

	ms, err := repo.GetSensorMeasurements(context.Background(), "sensor1", models.AggregationDaily, &from, &to)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSensorMeasurementsRawJoinsLocations(t *testing.T) {
	repo, mock := newTestRepo(t)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM measurements m\s+LEFT JOIN locations l ON l\.id = m\.location_id\s+WHERE m\.sensor_id = \$1 AND m\.time >= \$2 ORDER BY m\.time DESC`).
		WithArgs("sensor1", from).
		WillReturnRows(rawRows(3))

	ms, err := repo.GetSensorMeasurements(context.Background(), "sensor1", models.AggregationRaw, &from, nil)
	require.NoError(t, err)
	assert.Len(t, ms, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSensorMeasurementsRawCapsUnboundedQueries(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`ORDER BY m\.time DESC LIMIT 3600`).
		WithArgs("sensor1").
		WillReturnRows(rawRows(1))

	_, err := repo.GetSensorMeasurements(context.Background(), "sensor1", models.AggregationRaw, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSensorMeasurementsUnknownKeywordFallsBackToRaw(t *testing.T) {
	repo, mock := newTestRepo(t)

	// Unrecognized keywords degrade to the raw table instead of erroring.
	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN locations l ON l.id = m.location_id`)).
		WithArgs("sensor1").
		WillReturnRows(rawRows(1))

	_, err := repo.GetSensorMeasurements(context.Background(), "sensor1", models.Aggregation("5weeks"), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestNoRows(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`ORDER BY time DESC\s+LIMIT 1`).
		WithArgs("sensor1").
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id", "time", "value", "location_id"}))

	_, err := repo.GetLatest(context.Background(), "sensor1")
	require.Error(t, err)
}

func TestStreamPaginatesWithKeysetCursor(t *testing.T) {
	repo, mock := newTestRepo(t)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// First batch is bounded by the range start and fills the batch size.
	mock.ExpectQuery(`WHERE m\.sensor_id = ANY\(\$1\) AND m\.time <= \$2 AND m\.time >= \$3 ORDER BY m\.time ASC, m\.sensor_id ASC LIMIT \$4`).
		WillReturnRows(rawRows(2))

	// Second batch resumes from the composite cursor and comes back short,
	// which ends the stream.
	mock.ExpectQuery(`AND \(m\.time, m\.sensor_id\) > \(\$3, \$4\) ORDER BY m\.time ASC, m\.sensor_id ASC LIMIT \$5`).
		WillReturnRows(rawRows(1))

	stream := repo.Stream(context.Background(), []string{"sensor1"}, from, to, nil, 2)

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	batch, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	_, err = stream.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamEmptyRange(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`ORDER BY m\.time ASC, m\.sensor_id ASC LIMIT \$4`).
		WillReturnRows(rawRows(0))

	stream := repo.Stream(context.Background(), []string{"sensor1"}, time.Now().Add(-time.Hour), time.Now(), nil, 100)

	_, err := stream.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	// The stream stays exhausted.
	_, err = stream.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
