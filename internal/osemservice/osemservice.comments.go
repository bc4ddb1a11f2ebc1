package osemservice

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

// CreateComment adds a comment to a box. Requires authentication.
func (s *OsemService) CreateComment(ctx context.Context, boxID, content string) (*models.BoxComment, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return nil, errors.NewAuthError("authentication required", nil)
	}
	if content == "" {
		return nil, errors.NewValidationError("comment content is required", nil).WithField("content")
	}
	if _, err := s.Boxes.Get(ctx, boxID); err != nil {
		return nil, err
	}

	now := s.now()
	comment := &models.BoxComment{
		ID:        nuts.NID("comment", 12),
		BoxID:     boxID,
		UserID:    userID,
		Text:      content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns comments for a box, newest first.
func (s *OsemService) ListComments(ctx context.Context, boxID string, offset, limit int) ([]*models.BoxComment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.Boxes.Get(ctx, boxID); err != nil {
		return nil, err
	}
	return s.Comments.List(ctx, boxID, offset, limit)
}

// DeleteComment removes a comment. Allowed for the comment author and the
// box owner.
func (s *OsemService) DeleteComment(ctx context.Context, boxID, commentID string) error {
	userID := GetUserID(ctx)
	if userID == "" {
		return errors.NewAuthError("authentication required", nil)
	}

	comment, err := s.Comments.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.BoxID != boxID {
		return errors.NewNotFoundError("comment not found for box", nil)
	}

	if comment.UserID != userID && !hasRole(ctx, "admin") {
		box, err := s.Boxes.Get(ctx, boxID)
		if err != nil {
			return err
		}
		if box.OwnerID != userID {
			return errors.NewAuthorizationError("not allowed to delete this comment", nil)
		}
	}
	return s.Comments.Delete(ctx, commentID)
}
