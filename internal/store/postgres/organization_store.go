package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
// Each organization owns a dedicated schema named by its namespace key; the
// schema is created when the organization row commits and dropped when the
// organization is deleted, so tenant data isolation follows the row's
// lifecycle.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with the other identity stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

const organizationColumns = `
	org_id, name, namespace_key, status, admin_principal_id, created_at, updated_at
`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.OrgID,
		&org.Name,
		&org.NamespaceKey,
		&org.Status,
		&org.AdminPrincipalID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Create inserts the organization row and creates its data namespace in one
// transaction. This is the committing step of tenant onboarding: once it
// returns, the tenant exists.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.Exec(ctx, query,
		org.OrgID,
		org.Name,
		org.NamespaceKey,
		org.Status,
		org.AdminPrincipalID,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return mapStoreError("failed to create organization", err)
	}

	// The namespace key is validated and normalized before it reaches the
	// store, and quoted here; it cannot be parameterized in DDL.
	_, err = tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, org.NamespaceKey))
	if err != nil {
		return mapStoreError("failed to create tenant namespace", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapStoreError("failed to commit organization", err)
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("name", org.Name).
		Str("namespace", org.NamespaceKey).
		Msg("Created organization")

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, mapStoreError("failed to get organization", err)
	}

	return org, nil
}

// FindByName retrieves an organization by name.
func (s *OrganizationStore) FindByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE name = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, mapStoreError("failed to find organization by name", err)
	}

	return org, nil
}

// UpdateStatus transitions an organization's lifecycle status.
func (s *OrganizationStore) UpdateStatus(ctx context.Context, orgID uuid.UUID, status models.OrganizationStatus) error {
	query := `
		UPDATE organizations SET status = $2, updated_at = now()
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query, orgID, status)
	if err != nil {
		return mapStoreError("failed to update organization status", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("status", string(status)).
		Msg("Updated organization status")

	return nil
}

// List returns all organizations, newest first.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapStoreError("failed to list organizations", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, mapStoreError("failed to scan organization", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, mapStoreError("error iterating organizations", err)
	}

	return orgs, nil
}

// Delete removes the organization, its member principals, their sessions and
// the tenant's data namespace in one transaction.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var namespaceKey string
	err = tx.QueryRow(ctx, `
		DELETE FROM organizations WHERE org_id = $1
		RETURNING namespace_key
	`, orgID).Scan(&namespaceKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrOrganizationNotFound
		}
		return mapStoreError("failed to delete organization", err)
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM sessions WHERE org_id = $1
	`, orgID); err != nil {
		return mapStoreError("failed to delete organization sessions", err)
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM principals WHERE org_id = $1
	`, orgID); err != nil {
		return mapStoreError("failed to delete organization principals", err)
	}

	if _, err = tx.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, namespaceKey)); err != nil {
		return mapStoreError("failed to drop tenant namespace", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapStoreError("failed to commit organization delete", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("namespace", namespaceKey).
		Msg("Deleted organization and its namespace")

	return nil
}
