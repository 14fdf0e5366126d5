package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create creates a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			session_id, principal_id, org_id, fingerprint,
			created_at, expires_at, last_used_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::inet
		)
	`

	// Convert empty IP address to NULL for proper INET handling
	var ipAddress any
	if session.IPAddress != "" {
		ipAddress = session.IPAddress
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.PrincipalID,
		session.OrgID,
		session.Fingerprint,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastUsedAt,
		session.UserAgent,
		ipAddress,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrSessionAlreadyExists
		}
		return mapStoreError("failed to create session", err)
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("principal_id", session.PrincipalID.String()).
		Msg("Created session")

	return nil
}

// GetByFingerprint retrieves a live session by refresh token fingerprint and
// touches its last_used_at. Expired sessions are treated as not found.
func (s *SessionStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Session, error) {
	query := `
		SELECT
			session_id, principal_id, org_id, fingerprint,
			created_at, expires_at, last_used_at,
			user_agent, host(ip_address)
		FROM sessions
		WHERE fingerprint = $1 AND expires_at > now()
	`

	var session models.Session
	var ipAddress *string
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&session.SessionID,
		&session.PrincipalID,
		&session.OrgID,
		&session.Fingerprint,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.UserAgent,
		&ipAddress,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, mapStoreError("failed to get session", err)
	}

	if ipAddress != nil {
		session.IPAddress = *ipAddress
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE sessions SET last_used_at = $2 WHERE session_id = $1
	`, session.SessionID, time.Now())
	if err != nil {
		return nil, mapStoreError("failed to touch session", err)
	}

	return &session, nil
}

// DeleteByFingerprint revokes a single session (logout).
func (s *SessionStore) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return mapStoreError("failed to delete session", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// DeleteByPrincipal revokes all sessions for a principal (logout everywhere).
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE principal_id = $1`, principalID)
	if err != nil {
		return 0, mapStoreError("failed to delete sessions by principal", err)
	}

	count := int(result.RowsAffected())

	log.Info().
		Str("principal_id", principalID.String()).
		Int("count", count).
		Msg("Deleted all sessions for principal")

	return count, nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, mapStoreError("failed to delete expired sessions", err)
	}

	count := int(result.RowsAffected())

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}
