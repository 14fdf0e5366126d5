package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenauth/tenauth/internal/store"
)

// NewIdentity builds the full identity store on a shared connection pool.
func NewIdentity(pool *pgxpool.Pool) store.Identity {
	return store.Identity{
		Principals:    NewPrincipalStore(pool),
		Organizations: NewOrganizationStore(pool),
		Sessions:      NewSessionStore(pool),
	}
}
