// FilePath: internal/models/models.claim.go
package models

import "time"

// Claim is an ephemeral transfer token permitting one box to be handed
// over to a new owner. It is deleted as soon as it is claimed or revoked,
// and treated as invalid once ExpiresAt passes even if the row is still
// present (lazy expiration, no background sweeper).
type Claim struct {
	ID        string    `json:"id" db:"id"`
	BoxID     string    `json:"box_id" db:"box_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the claim is past its expiration at t.
func (c *Claim) Expired(t time.Time) bool {
	return t.After(c.ExpiresAt)
}
