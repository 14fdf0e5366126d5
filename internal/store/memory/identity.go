package memory

import "github.com/tenauth/tenauth/internal/store"

// NewIdentity builds a fully wired in-memory identity store. The principal
// store is linked to the organization store so orphan detection works the
// same way the production LEFT JOIN does, and the organization store is
// linked back so deletes cascade like the production store's transaction.
func NewIdentity() store.Identity {
	orgs := NewOrganizationStore()
	principals := NewPrincipalStore()
	sessions := NewSessionStore()
	principals.orgs = orgs
	orgs.principals = principals
	orgs.sessions = sessions

	return store.Identity{
		Principals:    principals,
		Organizations: orgs,
		Sessions:      sessions,
	}
}
