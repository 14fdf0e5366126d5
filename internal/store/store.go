// Package store defines the identity store boundary: the interfaces the auth
// core calls to look up and persist principals, organizations and sessions.
// Implementations live in subpackages (postgres for production, memory for
// tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tenauth/tenauth/internal/models"
)

// Sentinel errors for common store conditions.
var (
	ErrPrincipalNotFound         = errors.New("principal not found")
	ErrPrincipalAlreadyExists    = errors.New("principal already exists")
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrSessionNotFound           = errors.New("session not found")
	ErrSessionAlreadyExists      = errors.New("session already exists")

	// ErrStoreUnavailable marks retryable infrastructure failures
	// (connection loss, timeouts). Callers may retry once with backoff.
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// PrincipalStore manages principal records. Email uniqueness is enforced here,
// at the store boundary.
type PrincipalStore interface {
	Create(ctx context.Context, principal *models.Principal) error
	Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	Update(ctx context.Context, principal *models.Principal) error
	Delete(ctx context.Context, principalID uuid.UUID) error

	// RecordLoginFailure atomically increments the failure counter and, once
	// it reaches threshold, sets the lockout deadline. The increment must be
	// a single read-modify-write at the store so concurrent failed attempts
	// never lose updates. Returns the new counter value.
	RecordLoginFailure(ctx context.Context, principalID uuid.UUID, threshold int, lockUntil time.Time) (int, error)

	// ResetLoginFailures clears the failure counter and lockout deadline and
	// records a successful login.
	ResetLoginFailures(ctx context.Context, principalID uuid.UUID, lastLogin time.Time) error

	// ListOrphanAdmins returns non-superadmin principals whose organization
	// reference does not resolve: admins left behind by a tenant creation
	// that failed before the organization write committed.
	ListOrphanAdmins(ctx context.Context) ([]*models.Principal, error)
}

// OrganizationStore manages organization records. Name and namespace-key
// uniqueness are enforced here.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	FindByName(ctx context.Context, name string) (*models.Organization, error)
	UpdateStatus(ctx context.Context, orgID uuid.UUID, status models.OrganizationStatus) error
	List(ctx context.Context) ([]*models.Organization, error)

	// Delete removes the organization and cascades to its isolated data
	// namespace and member principals.
	Delete(ctx context.Context, orgID uuid.UUID) error
}

// SessionStore manages the durable records backing refresh tokens. Sessions
// are looked up by token fingerprint; deleting a row revokes the token.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.Session, error)
	DeleteByFingerprint(ctx context.Context, fingerprint string) error
	DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context) (int, error)
}

// Identity bundles the three stores the auth orchestrator depends on.
type Identity struct {
	Principals    PrincipalStore
	Organizations OrganizationStore
	Sessions      SessionStore
}
