// Package memory provides in-memory store implementations used by tests.
// Data is lost on restart; counter updates keep the same atomicity the
// production store guarantees.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// PrincipalStore implements store.PrincipalStore using in-memory storage.
type PrincipalStore struct {
	mu sync.RWMutex

	principals        map[uuid.UUID]*models.Principal // principal_id -> Principal
	principalsByEmail map[string]uuid.UUID            // email -> principal_id

	// orgs is consulted by ListOrphanAdmins; wired by NewIdentity.
	orgs *OrganizationStore
}

// NewPrincipalStore creates a new in-memory principal store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{
		principals:        make(map[uuid.UUID]*models.Principal),
		principalsByEmail: make(map[string]uuid.UUID),
	}
}

// Create creates a new principal, enforcing email uniqueness.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principals[principal.PrincipalID]; exists {
		return store.ErrPrincipalAlreadyExists
	}
	if _, exists := s.principalsByEmail[principal.Email]; exists {
		return store.ErrPrincipalAlreadyExists
	}

	clone := *principal
	s.principals[principal.PrincipalID] = &clone
	s.principalsByEmail[principal.Email] = principal.PrincipalID

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *principal
	return &clone, nil
}

// FindByEmail retrieves a principal by normalized email.
func (s *PrincipalStore) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.principalsByEmail[email]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *s.principals[id]
	return &clone, nil
}

// Update replaces an existing principal record.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.principals[principal.PrincipalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	if existing.Email != principal.Email {
		if _, taken := s.principalsByEmail[principal.Email]; taken {
			return store.ErrPrincipalAlreadyExists
		}
		delete(s.principalsByEmail, existing.Email)
		s.principalsByEmail[principal.Email] = principal.PrincipalID
	}

	clone := *principal
	clone.UpdatedAt = time.Now()
	s.principals[principal.PrincipalID] = &clone

	return nil
}

// Delete removes a principal.
func (s *PrincipalStore) Delete(ctx context.Context, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	delete(s.principalsByEmail, principal.Email)
	delete(s.principals, principalID)

	return nil
}

// RecordLoginFailure atomically increments the failure counter under the
// store lock, applying the lockout deadline once the threshold is reached.
func (s *PrincipalStore) RecordLoginFailure(ctx context.Context, principalID uuid.UUID, threshold int, lockUntil time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return 0, store.ErrPrincipalNotFound
	}

	principal.FailedLogins++
	if principal.FailedLogins >= threshold {
		until := lockUntil
		principal.LockedUntil = &until
	}
	principal.UpdatedAt = time.Now()

	return principal.FailedLogins, nil
}

// ResetLoginFailures clears lockout state and records a successful login.
func (s *PrincipalStore) ResetLoginFailures(ctx context.Context, principalID uuid.UUID, lastLogin time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	principal.FailedLogins = 0
	principal.LockedUntil = nil
	login := lastLogin
	principal.LastLoginAt = &login
	principal.UpdatedAt = time.Now()

	return nil
}

// deleteByOrg removes every principal belonging to the organization and
// returns their ids so the caller can cascade further.
func (s *PrincipalStore) deleteByOrg(orgID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []uuid.UUID
	for id, principal := range s.principals {
		if principal.OrgID != nil && *principal.OrgID == orgID {
			delete(s.principalsByEmail, principal.Email)
			delete(s.principals, id)
			removed = append(removed, id)
		}
	}

	return removed
}

// ListOrphanAdmins returns non-superadmin principals whose organization
// reference does not resolve.
func (s *PrincipalStore) ListOrphanAdmins(ctx context.Context) ([]*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orphans []*models.Principal
	for _, principal := range s.principals {
		if principal.Superadmin || principal.OrgID == nil {
			continue
		}
		if s.orgs != nil && s.orgs.exists(*principal.OrgID) {
			continue
		}
		clone := *principal
		orphans = append(orphans, &clone)
	}

	return orphans, nil
}
