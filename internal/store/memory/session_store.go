package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
type SessionStore struct {
	mu sync.RWMutex

	sessions map[string]*models.Session // fingerprint -> Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
	}
}

// Create creates a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.Fingerprint]; exists {
		return store.ErrSessionAlreadyExists
	}

	clone := *session
	s.sessions[session.Fingerprint] = &clone

	return nil
}

// GetByFingerprint retrieves a live session by refresh token fingerprint.
func (s *SessionStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[fingerprint]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, store.ErrSessionNotFound
	}

	clone := *session
	return &clone, nil
}

// DeleteByFingerprint revokes a single session.
func (s *SessionStore) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[fingerprint]; !exists {
		return store.ErrSessionNotFound
	}

	delete(s.sessions, fingerprint)
	return nil
}

// DeleteByPrincipal revokes all sessions for a principal.
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for fp, session := range s.sessions {
		if session.PrincipalID == principalID {
			delete(s.sessions, fp)
			count++
		}
	}

	return count, nil
}

// DeleteExpired removes all expired sessions.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for fp, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, fp)
			count++
		}
	}

	return count, nil
}
