// FilePath: internal/repository/postgres/postgres.claim.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

type ClaimRepo struct {
	PostgresBaseRepo
}

func NewClaimRepository(db database.DB) *ClaimRepo {
	repo := &PostgresBaseRepo{db: db}
	return &ClaimRepo{PostgresBaseRepo: *repo}
}

func (r *ClaimRepo) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (
			id, box_id, token, expires_at, created_at, updated_at
		) VALUES (
			:id, :box_id, :token, :expires_at, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, claim)
	if err != nil {
		return errors.NewDatabaseError("failed to create claim", err)
	}
	return nil
}

func (r *ClaimRepo) GetByToken(ctx context.Context, token string) (*models.Claim, error) {
	claim := &models.Claim{}
	query := `SELECT * FROM claims WHERE token = $1`

	err := r.db.GetDB().GetContext(ctx, claim, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("claim not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get claim", err)
	}
	return claim, nil
}

// GetActiveByBox returns the non-expired claim for a box, if any. Expired
// rows are ignored here rather than swept by a background job.
func (r *ClaimRepo) GetActiveByBox(ctx context.Context, boxID string, now time.Time) (*models.Claim, error) {
	claim := &models.Claim{}
	query := `SELECT * FROM claims WHERE box_id = $1 AND expires_at > $2`

	err := r.db.GetDB().GetContext(ctx, claim, query, boxID, now)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no active claim for box", err)
		}
		return nil, errors.NewDatabaseError("failed to get active claim", err)
	}
	return claim, nil
}

func (r *ClaimRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM claims WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete claim", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("claim not found", nil)
	}

	return nil
}

// DeleteTx removes a consumed claim inside the caller's transaction, paired
// with the ownership update so a crash mid-sequence cannot leave a box both
// transferred and still claimable.
func (r *ClaimRepo) DeleteTx(ctx context.Context, tx database.Transaction, id string) error {
	query := `DELETE FROM claims WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete claim", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("claim not found", nil)
	}

	return nil
}

func (r *ClaimRepo) DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error {
	query := `DELETE FROM claims WHERE box_id = $1`
	_, err := tx.ExecContext(ctx, query, boxID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete claims for box", err)
	}
	return nil
}
