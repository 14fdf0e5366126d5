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

// PrincipalStore implements store.PrincipalStore using PostgreSQL.
type PrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore creates a new PostgreSQL-backed principal store.
// It shares the connection pool with the other identity stores.
func NewPrincipalStore(pool *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{pool: pool}
}

const principalColumns = `
	principal_id, email, password_hash, org_id,
	is_superadmin, is_active, failed_logins, locked_until,
	created_at, updated_at, last_login_at
`

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(
		&p.PrincipalID,
		&p.Email,
		&p.PasswordHash,
		&p.OrgID,
		&p.Superadmin,
		&p.Active,
		&p.FailedLogins,
		&p.LockedUntil,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new principal. A duplicate normalized email is rejected
// with store.ErrPrincipalAlreadyExists.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	query := `
		INSERT INTO principals (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Email,
		principal.PasswordHash,
		principal.OrgID,
		principal.Superadmin,
		principal.Active,
		principal.FailedLogins,
		principal.LockedUntil,
		principal.CreatedAt,
		principal.UpdatedAt,
		principal.LastLoginAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrPrincipalAlreadyExists
		}
		return mapStoreError("failed to create principal", err)
	}

	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Bool("superadmin", principal.Superadmin).
		Msg("Created principal")

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE principal_id = $1`

	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, principalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, mapStoreError("failed to get principal", err)
	}

	return p, nil
}

// FindByEmail retrieves a principal by normalized email.
func (s *PrincipalStore) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`

	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, mapStoreError("failed to find principal by email", err)
	}

	return p, nil
}

// Update updates an existing principal.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	principal.UpdatedAt = time.Now()

	query := `
		UPDATE principals SET
			email = $2,
			password_hash = $3,
			org_id = $4,
			is_superadmin = $5,
			is_active = $6,
			failed_logins = $7,
			locked_until = $8,
			updated_at = $9,
			last_login_at = $10
		WHERE principal_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Email,
		principal.PasswordHash,
		principal.OrgID,
		principal.Superadmin,
		principal.Active,
		principal.FailedLogins,
		principal.LockedUntil,
		principal.UpdatedAt,
		principal.LastLoginAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrPrincipalAlreadyExists
		}
		return mapStoreError("failed to update principal", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	return nil
}

// Delete removes a principal.
func (s *PrincipalStore) Delete(ctx context.Context, principalID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM principals WHERE principal_id = $1`, principalID)
	if err != nil {
		return mapStoreError("failed to delete principal", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	log.Debug().
		Str("principal_id", principalID.String()).
		Msg("Deleted principal")

	return nil
}

// RecordLoginFailure increments the failure counter in a single
// read-modify-write statement so concurrent failed attempts against the same
// principal never lose updates. Once the new count reaches the threshold the
// lockout deadline is set in the same statement.
func (s *PrincipalStore) RecordLoginFailure(ctx context.Context, principalID uuid.UUID, threshold int, lockUntil time.Time) (int, error) {
	query := `
		UPDATE principals SET
			failed_logins = failed_logins + 1,
			locked_until = CASE
				WHEN failed_logins + 1 >= $2 THEN $3
				ELSE locked_until
			END,
			updated_at = $4
		WHERE principal_id = $1
		RETURNING failed_logins
	`

	var count int
	err := s.pool.QueryRow(ctx, query, principalID, threshold, lockUntil, time.Now()).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrPrincipalNotFound
		}
		return 0, mapStoreError("failed to record login failure", err)
	}

	return count, nil
}

// ResetLoginFailures clears lockout state and records a successful login.
func (s *PrincipalStore) ResetLoginFailures(ctx context.Context, principalID uuid.UUID, lastLogin time.Time) error {
	query := `
		UPDATE principals SET
			failed_logins = 0,
			locked_until = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE principal_id = $1
	`

	result, err := s.pool.Exec(ctx, query, principalID, lastLogin)
	if err != nil {
		return mapStoreError("failed to reset login failures", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	return nil
}

// ListOrphanAdmins returns non-superadmin principals whose org_id does not
// resolve to an organization: admins left behind when tenant creation failed
// before the organization write committed.
func (s *PrincipalStore) ListOrphanAdmins(ctx context.Context) ([]*models.Principal, error) {
	query := `
		SELECT
			p.principal_id, p.email, p.password_hash, p.org_id,
			p.is_superadmin, p.is_active, p.failed_logins, p.locked_until,
			p.created_at, p.updated_at, p.last_login_at
		FROM principals p
		LEFT JOIN organizations o ON p.org_id = o.org_id
		WHERE p.org_id IS NOT NULL
		  AND NOT p.is_superadmin
		  AND o.org_id IS NULL
		ORDER BY p.created_at
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapStoreError("failed to list orphan admins", err)
	}
	defer rows.Close()

	var orphans []*models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, mapStoreError("failed to scan orphan admin", err)
		}
		orphans = append(orphans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, mapStoreError("error iterating orphan admins", err)
	}

	return orphans, nil
}
