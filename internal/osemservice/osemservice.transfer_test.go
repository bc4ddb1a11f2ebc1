package osemservice

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/config"
	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/mailer"
	"github.com/opensensemap/osem/internal/repository/postgres"
	"github.com/opensensemap/osem/internal/repository/timescale"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*OsemService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	wrapped := database.Wrap(sqlx.NewDb(db, "sqlmock"))
	svc := New(
		postgres.NewBoxRepository(wrapped),
		postgres.NewSensorRepository(wrapped),
		timescale.NewMeasurementRepositoryNoInit(wrapped),
		postgres.NewClaimRepository(wrapped),
		postgres.NewBoxCommentRepository(wrapped),
		mailer.New(config.SMTPConfig{}),
		nil,
		24*time.Hour,
	)
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func userCtx(userID string) context.Context {
	ctx := context.WithValue(context.Background(), CtxUserID, userID)
	return context.WithValue(ctx, CtxUserRoles, []string{"user"})
}

func boxColumns() []string {
	return []string{
		"id", "name", "description", "exposure", "status", "model",
		"owner_id", "access_token", "longitude", "latitude",
		"last_measurement_at", "created_at", "updated_at",
	}
}

func boxRow(ownerID string) *sqlmock.Rows {
	return sqlmock.NewRows(boxColumns()).AddRow(
		"box1", "Balcony", "", "outdoor", "active", "senseBox:home",
		ownerID, "token123", 7.62, 51.96,
		testNow, testNow, testNow,
	)
}

func claimColumns() []string {
	return []string{"id", "box_id", "token", "expires_at", "created_at", "updated_at"}
}

func expectGetBox(mock sqlmock.Sqlmock, ownerID string) {
	mock.ExpectQuery(`SELECT \* FROM boxes WHERE id = \$1`).
		WithArgs("box1").
		WillReturnRows(boxRow(ownerID))
}

func TestCreateTransferRejectsNonOwner(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "somebodyelse")

	_, err := svc.CreateTransfer(userCtx("alice"), "box1", nil, "")
	require.Error(t, err)
	apiErr := errors.AsAPIError(err)
	assert.Equal(t, 403, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransferConflictsWithActiveClaim(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")

	mock.ExpectQuery(`SELECT \* FROM claims WHERE box_id = \$1 AND expires_at > \$2`).
		WithArgs("box1", testNow).
		WillReturnRows(sqlmock.NewRows(claimColumns()).
			AddRow("claim1", "box1", "tok", testNow.Add(time.Hour), testNow, testNow))

	_, err := svc.CreateTransfer(userCtx("alice"), "box1", nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransferDefaultExpiry(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")

	mock.ExpectQuery(`SELECT \* FROM claims WHERE box_id = \$1 AND expires_at > \$2`).
		WithArgs("box1", testNow).
		WillReturnRows(sqlmock.NewRows(claimColumns()))

	mock.ExpectExec(`INSERT INTO claims`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claim, err := svc.CreateTransfer(userCtx("alice"), "box1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "box1", claim.BoxID)
	assert.NotEmpty(t, claim.Token)
	assert.Equal(t, testNow.Add(24*time.Hour), claim.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransferRejectsPastExpiry(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")

	mock.ExpectQuery(`SELECT \* FROM claims WHERE box_id = \$1 AND expires_at > \$2`).
		WillReturnRows(sqlmock.NewRows(claimColumns()))

	past := testNow.Add(-time.Hour)
	_, err := svc.CreateTransfer(userCtx("alice"), "box1", &past, "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestClaimBoxTransfersOwnershipAtomically(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM claims WHERE token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(claimColumns()).
			AddRow("claim1", "box1", "tok", testNow.Add(time.Hour), testNow, testNow))

	expectGetBox(mock, "alice")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE boxes SET owner_id = \$1, updated_at = \$2 WHERE id = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM claims WHERE id = \$1`).
		WithArgs("claim1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	box, err := svc.ClaimBox(userCtx("bob"), "tok", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", box.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBoxExpired(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM claims WHERE token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(claimColumns()).
			AddRow("claim1", "box1", "tok", testNow.Add(-time.Minute), testNow.Add(-25*time.Hour), testNow.Add(-25*time.Hour)))

	// Expired claims are removed lazily when presented.
	mock.ExpectExec(`DELETE FROM claims WHERE id = \$1`).
		WithArgs("claim1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := svc.ClaimBox(userCtx("bob"), "tok", "")
	require.Error(t, err)
	assert.True(t, errors.IsExpired(err))
	assert.Equal(t, 403, errors.AsAPIError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBoxRollsBackWhenClaimVanishes(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM claims WHERE token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(claimColumns()).
			AddRow("claim1", "box1", "tok", testNow.Add(time.Hour), testNow, testNow))

	expectGetBox(mock, "alice")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE boxes SET owner_id = \$1, updated_at = \$2 WHERE id = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM claims WHERE id = \$1`).
		WithArgs("claim1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.ClaimBox(userCtx("bob"), "tok", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBoxUnknownToken(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM claims WHERE token = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(claimColumns()))

	_, err := svc.ClaimBox(userCtx("bob"), "nope", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRevokeTransferChecksTokenMatchesBox(t *testing.T) {
	svc, mock := newTestService(t)
	expectGetBox(mock, "alice")

	mock.ExpectQuery(`SELECT \* FROM claims WHERE token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(claimColumns()).
			AddRow("claim1", "otherbox", "tok", testNow.Add(time.Hour), testNow, testNow))

	err := svc.RevokeTransfer(userCtx("alice"), "box1", "tok")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
