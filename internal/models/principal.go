package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal represents an authenticable identity in the system.
// Regular principals belong to an organization; superadmin principals
// operate against the master namespace and carry no organization reference.
type Principal struct {
	PrincipalID  uuid.UUID  // UUIDv7
	Email        string     // Case-normalized, unique across all tenants
	PasswordHash string     // bcrypt digest, never the raw credential
	OrgID        *uuid.UUID // FK to organizations, nil for superadmins
	Superadmin   bool
	Active       bool

	// Lockout state, maintained atomically at the store boundary
	FailedLogins int
	LockedUntil  *time.Time

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// IsLocked returns true if the principal is inside a lockout window.
func (p *Principal) IsLocked(now time.Time) bool {
	return p.LockedUntil != nil && now.Before(*p.LockedUntil)
}
