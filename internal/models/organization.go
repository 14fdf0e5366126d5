package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationStatus represents the lifecycle state of an organization.
type OrganizationStatus string

const (
	OrganizationStatusActive    OrganizationStatus = "active"
	OrganizationStatusSuspended OrganizationStatus = "suspended"
	OrganizationStatusDeleted   OrganizationStatus = "deleted"
)

// Organization represents a tenant in the system: an isolated customer
// namespace with its own admin principal and data partition.
type Organization struct {
	OrgID            uuid.UUID // UUIDv7
	Name             string    // Unique display name
	NamespaceKey     string    // Deterministic storage namespace derived from Name, unique
	Status           OrganizationStatus
	AdminPrincipalID uuid.UUID // FK to principals
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsActive returns true if the organization accepts tenant-scoped operations.
func (o *Organization) IsActive() bool {
	return o.Status == OrganizationStatusActive
}
