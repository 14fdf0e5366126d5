package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
	"github.com/tenauth/tenauth/internal/tenant"
)

// Requirement describes what an operation demands of the caller. The zero
// value requires nothing beyond a verified token.
type Requirement struct {
	// Superadmin restricts the operation to superadmin principals.
	Superadmin bool

	// Active requires the principal's account to be active. Almost every
	// operation wants this.
	Active bool

	// TenantMatch requires the caller's organization to match the resolved
	// tenant. Superadmins pass regardless of tenant.
	TenantMatch bool
}

// Authorize checks a principal against a requirement for the given resolved
// tenant id. Denials are specific so a legitimate caller can tell an expired
// membership from a privilege gap.
func Authorize(p *models.Principal, tenantID string, req Requirement) error {
	if req.Active && !p.Active {
		return ErrInactiveAccount
	}

	if req.Superadmin && !p.Superadmin {
		return ErrInsufficientPrivilege
	}

	if req.TenantMatch && !p.Superadmin {
		if err := tenant.Require(tenantID, p.Superadmin); err != nil {
			return err
		}
		if p.OrgID == nil || p.OrgID.String() != tenantID {
			return ErrWrongTenant
		}
	}

	return nil
}

// AuthorizeTenant authorizes a principal for a tenant-scoped operation and
// additionally rejects callers whose organization is suspended or deleted.
// Superadmins bypass the membership check but not a suspended target tenant.
func (s *Service) AuthorizeTenant(ctx context.Context, p *models.Principal, tenantID string) error {
	if err := Authorize(p, tenantID, Requirement{Active: true, TenantMatch: true}); err != nil {
		return err
	}

	if tenantID == "" {
		// Superadmin operating against the master namespace.
		return nil
	}

	org, err := s.tenantByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !org.IsActive() {
		return ErrTenantSuspended
	}

	return nil
}

func (s *Service) tenantByID(ctx context.Context, tenantID string) (*models.Organization, error) {
	orgID, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, store.ErrOrganizationNotFound
	}
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.Get(ctx, orgID)
	})
}
