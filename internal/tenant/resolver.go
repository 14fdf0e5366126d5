// Package tenant derives the active tenant context for a request and maps
// organization names onto their storage namespaces.
package tenant

import (
	"errors"
)

var (
	// ErrTenantRequired is returned when a tenant-scoped operation is
	// attempted with no tenant in context by a non-superadmin caller.
	ErrTenantRequired = errors.New("tenant required")

	// ErrTenantMismatch is returned when the tenant in a validated token's
	// claims disagrees with the tenant named by the request path or header.
	// Resolution fails closed rather than picking either value.
	ErrTenantMismatch = errors.New("tenant mismatch")
)

// Ref carries the candidate tenant identifiers extracted from a request.
// Path and Header are untrusted until cross-checked against Claims.
type Ref struct {
	Claims string // tenant id from a validated bearer token
	Path   string // tenant id from the request path
	Header string // tenant id from the dedicated tenant header
}

// Resolve derives the active tenant id for a request. Precedence, first match
// wins: token claims, then path, then header. When a token tenant is present,
// any conflicting path or header value is an ErrTenantMismatch. An empty
// result means the caller operates against the master namespace only.
func Resolve(ref Ref) (string, error) {
	if ref.Claims != "" {
		if ref.Path != "" && ref.Path != ref.Claims {
			return "", ErrTenantMismatch
		}
		if ref.Header != "" && ref.Header != ref.Claims {
			return "", ErrTenantMismatch
		}
		return ref.Claims, nil
	}

	if ref.Path != "" {
		return ref.Path, nil
	}

	return ref.Header, nil
}

// Require enforces that a tenant is in context for a tenant-scoped operation.
// Superadmins may operate without one.
func Require(tenantID string, superadmin bool) error {
	if tenantID == "" && !superadmin {
		return ErrTenantRequired
	}
	return nil
}
