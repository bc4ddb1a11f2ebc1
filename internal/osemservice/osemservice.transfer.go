package osemservice

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

// CreateTransfer opens a transfer claim for a box owned by the caller.
// Only one active claim per box is allowed; expiry defaults to the
// configured claim lifetime. When notifyEmail is set and the mailer is
// configured, the claim token is mailed out.
func (s *OsemService) CreateTransfer(ctx context.Context, boxID string, expiresAt *time.Time, notifyEmail string) (*models.Claim, error) {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return nil, err
	}

	now := s.now()
	active, err := s.Claims.GetActiveByBox(ctx, boxID, now)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if active != nil {
		return nil, errors.NewConflictError("box already has an active transfer", nil)
	}

	expiry := now.Add(s.claimExpiry)
	if expiresAt != nil {
		if expiresAt.Before(now) {
			return nil, errors.NewValidationError("expiry must be in the future", nil).WithField("expiresAt")
		}
		expiry = *expiresAt
	}

	claim := &models.Claim{
		ID:        nuts.NID("claim", 12),
		BoxID:     boxID,
		Token:     nuts.NID("transfer", 32),
		ExpiresAt: expiry,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Claims.Create(ctx, claim); err != nil {
		return nil, err
	}

	nuts.L.Infof("[OsemService.CreateTransfer] opened transfer for box (%s), expires %s", boxID, expiry.Format(time.RFC3339))

	if notifyEmail != "" && s.mailer.Enabled() {
		validHours := int(time.Until(expiry).Hours())
		if err := s.mailer.SendTransferCreated(notifyEmail, box.Name, claim.Token, validHours); err != nil {
			nuts.L.Warnf("[OsemService.CreateTransfer] notification mail failed for box (%s): %v", boxID, err)
		}
	}
	return claim, nil
}

// ClaimBox completes a transfer: the caller presents the claim token and
// becomes the new owner. Ownership change and claim removal happen in one
// transaction. Expired claims are rejected and removed lazily.
func (s *OsemService) ClaimBox(ctx context.Context, token, notifyEmail string) (*models.Box, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return nil, errors.NewAuthError("authentication required", nil)
	}

	claim, err := s.Claims.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claim.Expired(s.now()) {
		if err := s.Claims.Delete(ctx, claim.ID); err != nil {
			nuts.L.Warnf("[OsemService.ClaimBox] removing expired claim (%s) failed: %v", claim.ID, err)
		}
		return nil, errors.NewExpiredError("transfer claim expired", nil)
	}

	box, err := s.Boxes.Get(ctx, claim.BoxID)
	if err != nil {
		return nil, err
	}

	tx, err := s.Boxes.BeginTx(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	if err := s.Boxes.UpdateOwnerTx(ctx, tx, box.ID, userID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.Claims.DeleteTx(ctx, tx, claim.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseError("failed to commit transfer", err)
	}

	box.OwnerID = userID
	nuts.L.Infof("[OsemService.ClaimBox] box (%s) transferred to user (%s)", box.ID, userID)

	if notifyEmail != "" && s.mailer.Enabled() {
		if err := s.mailer.SendTransferCompleted(notifyEmail, box.Name); err != nil {
			nuts.L.Warnf("[OsemService.ClaimBox] confirmation mail failed for box (%s): %v", box.ID, err)
		}
	}
	return s.filterBox(ctx, box), nil
}

// RevokeTransfer cancels a pending transfer. Only the box owner may revoke,
// and the presented token must match the active claim.
func (s *OsemService) RevokeTransfer(ctx context.Context, boxID, token string) error {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return err
	}

	claim, err := s.Claims.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if claim.BoxID != boxID {
		return errors.NewValidationError("token does not match box", nil).WithField("token")
	}
	return s.Claims.Delete(ctx, claim.ID)
}

// GetTransfer returns the active claim for a box, owner only.
func (s *OsemService) GetTransfer(ctx context.Context, boxID string) (*models.Claim, error) {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return nil, err
	}
	return s.Claims.GetActiveByBox(ctx, boxID, s.now())
}
