// FilePath: internal/repository/postgres/postgres.sensor.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

type SensorRepo struct {
	PostgresBaseRepo
}

func NewSensorRepository(db database.DB) *SensorRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SensorRepo{PostgresBaseRepo: *repo}
}

func (r *SensorRepo) Create(ctx context.Context, sensor *models.Sensor) error {
	query := `
		INSERT INTO sensors (
			id, box_id, title, unit, sensor_type, icon,
			last_value, last_value_at, metadata, created_at, updated_at
		) VALUES (
			:id, :box_id, :title, :unit, :sensor_type, :icon,
			:last_value, :last_value_at, :metadata, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, sensor)
	if err != nil {
		return errors.NewDatabaseError("failed to create sensor", err)
	}
	return nil
}

func (r *SensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	sensor := &models.Sensor{}
	query := `SELECT * FROM sensors WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, sensor, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get sensor", err)
	}
	return sensor, nil
}

func (r *SensorRepo) Update(ctx context.Context, sensor *models.Sensor) error {
	query := `
		UPDATE sensors SET
			title = :title,
			unit = :unit,
			sensor_type = :sensor_type,
			icon = :icon,
			metadata = :metadata,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, sensor)
	if err != nil {
		return errors.NewDatabaseError("failed to update sensor", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}

	return nil
}

// UpdateLastValue refreshes the cached last-measurement snapshot.
func (r *SensorRepo) UpdateLastValue(ctx context.Context, id string, value float64, t time.Time) error {
	query := `UPDATE sensors SET last_value = $1, last_value_at = $2 WHERE id = $3`
	result, err := r.db.GetDB().ExecContext(ctx, query, value, t, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update sensor last value", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}

	return nil
}

func (r *SensorRepo) ListByBox(ctx context.Context, boxID string) ([]*models.Sensor, error) {
	sensors := []*models.Sensor{}
	query := `SELECT * FROM sensors WHERE box_id = $1 ORDER BY created_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &sensors, query, boxID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list sensors", err)
	}

	return sensors, nil
}

func (r *SensorRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sensors WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete sensor", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}

	return nil
}

func (r *SensorRepo) DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error {
	query := `DELETE FROM sensors WHERE box_id = $1`
	_, err := tx.ExecContext(ctx, query, boxID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete sensors for box", err)
	}
	return nil
}
