package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
type OrganizationStore struct {
	mu sync.RWMutex

	orgs       map[uuid.UUID]*models.Organization // org_id -> Organization
	orgsByName map[string]uuid.UUID               // name -> org_id
	orgsByKey  map[string]uuid.UUID               // namespace_key -> org_id

	// principals and sessions receive cascade deletes; wired by NewIdentity.
	principals *PrincipalStore
	sessions   *SessionStore
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs:       make(map[uuid.UUID]*models.Organization),
		orgsByName: make(map[string]uuid.UUID),
		orgsByKey:  make(map[string]uuid.UUID),
	}
}

// Create creates a new organization, enforcing name and namespace-key
// uniqueness.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.orgsByName[org.Name]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.orgsByKey[org.NamespaceKey]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	clone := *org
	s.orgs[org.OrgID] = &clone
	s.orgsByName[org.Name] = org.OrgID
	s.orgsByKey[org.NamespaceKey] = org.OrgID

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// FindByName retrieves an organization by name.
func (s *OrganizationStore) FindByName(ctx context.Context, name string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.orgsByName[name]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *s.orgs[id]
	return &clone, nil
}

// UpdateStatus transitions an organization's lifecycle status.
func (s *OrganizationStore) UpdateStatus(ctx context.Context, orgID uuid.UUID, status models.OrganizationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	org.Status = status
	org.UpdatedAt = time.Now()

	return nil
}

// List returns all organizations.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]*models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		clone := *org
		orgs = append(orgs, &clone)
	}

	return orgs, nil
}

// Delete removes an organization and cascades to its member principals and
// their sessions, matching the production store's behavior. The org lock is
// released before touching the other stores so lock ordering stays one-way.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	org, exists := s.orgs[orgID]
	if !exists {
		s.mu.Unlock()
		return store.ErrOrganizationNotFound
	}

	delete(s.orgsByName, org.Name)
	delete(s.orgsByKey, org.NamespaceKey)
	delete(s.orgs, orgID)
	s.mu.Unlock()

	if s.principals != nil {
		for _, principalID := range s.principals.deleteByOrg(orgID) {
			if s.sessions != nil {
				_, _ = s.sessions.DeleteByPrincipal(ctx, principalID)
			}
		}
	}

	return nil
}

func (s *OrganizationStore) exists(orgID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.orgs[orgID]
	return ok
}
