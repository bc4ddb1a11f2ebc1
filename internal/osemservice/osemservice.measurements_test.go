package osemservice

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

func sensorColumns() []string {
	return []string{
		"id", "box_id", "title", "unit", "sensor_type", "icon",
		"last_value", "last_value_at", "metadata", "created_at", "updated_at",
	}
}

func sensorRow(boxID string) *sqlmock.Rows {
	return sqlmock.NewRows(sensorColumns()).AddRow(
		"sensor1", boxID, "Temperatur", "°C", "HDC1080", "",
		0.0, testNow, []byte(`{}`), testNow, testNow,
	)
}

func mobileBoxRow() *sqlmock.Rows {
	return sqlmock.NewRows(boxColumns()).AddRow(
		"box1", "Bike", "", "mobile", "active", "senseBox:mobile",
		"alice", "token123", 7.62, 51.96,
		testNow, testNow, testNow,
	)
}

func expectSensorGet(mock sqlmock.Sqlmock, boxID string) {
	mock.ExpectQuery(`SELECT \* FROM sensors WHERE id = \$1`).
		WithArgs("sensor1").
		WillReturnRows(sensorRow(boxID))
}

func TestRecordMeasurementRejectsBadAccessToken(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")

	m := &models.Measurement{SensorID: "sensor1", Value: 21.5}
	err := svc.RecordMeasurement(userCtx(""), "box1", "wrong", m, nil)
	require.Error(t, err)
	assert.Equal(t, 401, errors.AsAPIError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMeasurementRejectsForeignSensor(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")
	expectSensorGet(mock, "otherbox")

	m := &models.Measurement{SensorID: "sensor1", Value: 21.5}
	err := svc.RecordMeasurement(userCtx(""), "box1", "token123", m, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRecordMeasurementStoresValueAndBookkeeping(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")
	expectSensorGet(mock, "box1")

	mock.ExpectExec(`INSERT INTO measurements`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sensors SET last_value = \$1, last_value_at = \$2 WHERE id = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE boxes SET last_measurement_at = \$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	at := testNow.Add(-time.Minute)
	m := &models.Measurement{SensorID: "sensor1", Value: 21.5, Time: at}
	err := svc.RecordMeasurement(userCtx(""), "box1", "token123", m, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMeasurementBookkeepingFailureIsNotFatal(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")
	expectSensorGet(mock, "box1")

	mock.ExpectExec(`INSERT INTO measurements`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Snapshot updates are best-effort once the measurement is stored.
	mock.ExpectExec(`UPDATE sensors SET last_value`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE boxes SET last_measurement_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := &models.Measurement{SensorID: "sensor1", Value: 21.5, Time: testNow}
	err := svc.RecordMeasurement(userCtx(""), "box1", "token123", m, nil)
	require.NoError(t, err)
}

func TestRecordMeasurementLocationRequiresMobileBox(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice") // outdoor box
	expectSensorGet(mock, "box1")

	m := &models.Measurement{SensorID: "sensor1", Value: 21.5, Time: testNow}
	loc := &models.Location{X: 7.62, Y: 51.96}
	err := svc.RecordMeasurement(userCtx(""), "box1", "token123", m, loc)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRecordMeasurementStoresMobileLocation(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM boxes WHERE id = \$1`).
		WithArgs("box1").
		WillReturnRows(mobileBoxRow())
	expectSensorGet(mock, "box1")

	mock.ExpectExec(`INSERT INTO locations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO measurements`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sensors SET last_value`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE boxes SET last_measurement_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &models.Measurement{SensorID: "sensor1", Value: 21.5, Time: testNow}
	loc := &models.Location{X: 7.62, Y: 51.96}
	err := svc.RecordMeasurement(userCtx(""), "box1", "token123", m, loc)
	require.NoError(t, err)

	// The stored measurement references the newly created location fix.
	require.NotNil(t, m.LocationID)
	assert.Equal(t, "box1", loc.BoxID)
	assert.Equal(t, testNow, loc.Time)
	assert.NoError(t, mock.ExpectationsWereMet())
}
