package osemservice

import (
	"context"
	"time"

	"github.com/opensensemap/osem/internal/cache"
	"github.com/opensensemap/osem/internal/cleanup"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/mailer"
	"github.com/opensensemap/osem/internal/repository"
)

// OsemService contains all repositories and service-wide dependencies
type OsemService struct {
	Boxes        repository.BoxRepository
	Sensors      repository.SensorRepository
	Measurements repository.MeasurementRepository
	Claims       repository.ClaimRepository
	Comments     repository.BoxCommentRepository
	Cleanup      *cleanup.CleanupService

	mailer        *mailer.Mailer
	latest        *cache.LatestMeasurements
	claimExpiry   time.Duration
	now           func() time.Time
}

// New creates a new OsemService instance
func New(
	boxes repository.BoxRepository,
	sensors repository.SensorRepository,
	measurements repository.MeasurementRepository,
	claims repository.ClaimRepository,
	comments repository.BoxCommentRepository,
	mail *mailer.Mailer,
	latest *cache.LatestMeasurements,
	claimExpiry time.Duration,
) *OsemService {
	svc := &OsemService{
		Boxes:        boxes,
		Sensors:      sensors,
		Measurements: measurements,
		Claims:       claims,
		Comments:     comments,
		mailer:       mail,
		latest:       latest,
		claimExpiry:  claimExpiry,
		now:          time.Now,
	}
	svc.Cleanup = cleanup.New(boxes, sensors, measurements, claims, comments)
	return svc
}

// Validate checks if all required repositories are initialized
func (s *OsemService) Validate() error {
	if s.Boxes == nil {
		return ErrMissingRepository("boxes")
	}
	if s.Sensors == nil {
		return ErrMissingRepository("sensors")
	}
	if s.Measurements == nil {
		return ErrMissingRepository("measurements")
	}
	if s.Claims == nil {
		return ErrMissingRepository("claims")
	}
	if s.Comments == nil {
		return ErrMissingRepository("comments")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

type ctxKey string

const (
	// CtxUserID carries the authenticated user's id, set by the auth
	// middleware.
	CtxUserID ctxKey = "osem.user_id"
	// CtxUserRoles carries the authenticated user's roles.
	CtxUserRoles ctxKey = "osem.user_roles"
)

// GetUserID retrieves the authenticated user id from context, empty when
// the request is unauthenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxUserID).(string); ok {
		return id
	}
	return ""
}

// GetUserRoles retrieves user roles from context
func GetUserRoles(ctx context.Context) []string {
	if roles, ok := ctx.Value(CtxUserRoles).([]string); ok {
		return roles
	}
	return []string{"guest"}
}
