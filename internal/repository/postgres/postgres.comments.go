// FilePath: internal/repository/postgres/postgres.comments.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

type BoxCommentRepo struct {
	PostgresBaseRepo
}

func NewBoxCommentRepository(db database.DB) *BoxCommentRepo {
	repo := &PostgresBaseRepo{db: db}
	return &BoxCommentRepo{PostgresBaseRepo: *repo}
}

func (r *BoxCommentRepo) Create(ctx context.Context, comment *models.BoxComment) error {
	query := `
		INSERT INTO box_comments (
			id, box_id, user_id, text, created_at, updated_at
		) VALUES (
			:id, :box_id, :user_id, :text, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, comment)
	if err != nil {
		return errors.NewDatabaseError("failed to create comment", err)
	}
	return nil
}

func (r *BoxCommentRepo) Get(ctx context.Context, id string) (*models.BoxComment, error) {
	comment := &models.BoxComment{}
	query := `SELECT * FROM box_comments WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, comment, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("comment not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get comment", err)
	}
	return comment, nil
}

func (r *BoxCommentRepo) List(ctx context.Context, boxID string, offset, limit int) ([]*models.BoxComment, error) {
	comments := []*models.BoxComment{}
	query := `SELECT * FROM box_comments WHERE box_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	err := r.db.GetDB().SelectContext(ctx, &comments, query, boxID, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list comments", err)
	}

	return comments, nil
}

func (r *BoxCommentRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM box_comments WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete comment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("comment not found", nil)
	}

	return nil
}

func (r *BoxCommentRepo) DeleteByBoxTx(ctx context.Context, tx database.Transaction, boxID string) error {
	query := `DELETE FROM box_comments WHERE box_id = $1`
	_, err := tx.ExecContext(ctx, query, boxID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete comments for box", err)
	}
	return nil
}
