// FilePath: internal/repository/postgres/postgres.box.go
package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

type BoxRepo struct {
	PostgresBaseRepo
}

func NewBoxRepository(db database.DB) *BoxRepo {
	repo := &PostgresBaseRepo{db: db}
	return &BoxRepo{PostgresBaseRepo: *repo}
}

func (r *BoxRepo) Create(ctx context.Context, box *models.Box) error {
	query := `
		INSERT INTO boxes (
			id, name, description, exposure, status, model,
			owner_id, access_token, longitude, latitude,
			last_measurement_at, created_at, updated_at
		) VALUES (
			:id, :name, :description, :exposure, :status, :model,
			:owner_id, :access_token, :longitude, :latitude,
			:last_measurement_at, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, box)
	if err != nil {
		return errors.NewDatabaseError("failed to create box", err)
	}
	return nil
}

func (r *BoxRepo) Get(ctx context.Context, id string) (*models.Box, error) {
	box := &models.Box{}
	query := `SELECT * FROM boxes WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, box, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("box not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get box", err)
	}
	return box, nil
}

func (r *BoxRepo) Update(ctx context.Context, box *models.Box) error {
	query := `
		UPDATE boxes SET
			name = :name,
			description = :description,
			exposure = :exposure,
			status = :status,
			model = :model,
			longitude = :longitude,
			latitude = :latitude,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, box)
	if err != nil {
		return errors.NewDatabaseError("failed to update box", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("box not found", nil)
	}

	return nil
}

func (r *BoxRepo) UpdateLastMeasurementAt(ctx context.Context, id string, t time.Time) error {
	query := `UPDATE boxes SET last_measurement_at = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, t, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update last measurement time", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("box not found", nil)
	}

	return nil
}

// UpdateOwnerTx flips box ownership inside the caller's transaction. Used
// by the claim workflow so the ownership change and the claim deletion
// commit or roll back together.
func (r *BoxRepo) UpdateOwnerTx(ctx context.Context, tx database.Transaction, id, ownerID string) error {
	query := `UPDATE boxes SET owner_id = $1, updated_at = $2 WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, ownerID, time.Now(), id)
	if err != nil {
		return errors.NewDatabaseError("failed to update box owner", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("box not found", nil)
	}

	return nil
}

func (r *BoxRepo) List(ctx context.Context, filters models.BoxFilters, offset, limit int) ([]*models.Box, error) {
	boxes := []*models.Box{}
	query := `SELECT * FROM boxes WHERE 1=1`
	args := []interface{}{}

	if filters.Exposure != "" {
		args = append(args, filters.Exposure)
		query += ` AND exposure = $` + strconv.Itoa(len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filters.OwnerID != "" {
		args = append(args, filters.OwnerID)
		query += ` AND owner_id = $` + strconv.Itoa(len(args))
	}
	if filters.Phenomenon != "" {
		args = append(args, filters.Phenomenon)
		query += ` AND id IN (SELECT box_id FROM sensors WHERE title = $` + strconv.Itoa(len(args)) + `)`
	}

	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	err := r.db.GetDB().SelectContext(ctx, &boxes, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list boxes", err)
	}

	return boxes, nil
}

func (r *BoxRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM boxes WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete box", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("box not found", nil)
	}

	return nil
}
