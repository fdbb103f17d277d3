package domain

import (
	"context"
	"time"
)

// TenantStatus is the moderation state of a tenant
type TenantStatus string

const (
	TenantPending    TenantStatus = "PENDING"
	TenantApproved   TenantStatus = "APPROVED"
	TenantRejected   TenantStatus = "REJECTED"
	TenantSuspended  TenantStatus = "SUSPENDED"
	TenantReinstated TenantStatus = "REINSTATED"
)

// Tenant represents a registered organization on the platform. The ID is a
// caller-chosen slug and never changes; UUID is the system-generated secondary
// identifier used in URLs where the slug should not leak.
type Tenant struct {
	ID        string       `json:"id"`
	UUID      string       `json:"uuid"`
	Status    TenantStatus `json:"status"`
	OwnerID   *string      `json:"ownerId,omitempty"`   // weak ref, nulled on user deletion
	CreatedBy *string      `json:"createdBy,omitempty"` // weak ref, nulled on user deletion
	Deleted   bool         `json:"-"`
	DeletedAt *time.Time   `json:"-"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ModerationEntry is one record of the append-only moderation log. Entries are
// inserted exactly once per successful status transition and never mutated;
// the log, not the status column, answers "when was this tenant approved".
type ModerationEntry struct {
	Action TenantStatus `json:"action"`
	By     string       `json:"by"`
	Reason string       `json:"reason,omitempty"`
	At     time.Time    `json:"at"`
}

// Organization is the descriptive profile of a tenant, created atomically
// with it and cascade-deleted with it.
type Organization struct {
	TenantID     string    `json:"tenantId"`
	Name         string    `json:"name"`
	LegalName    string    `json:"legalName,omitempty"`
	Country      string    `json:"country,omitempty"`
	ContactEmail string    `json:"contactEmail"`
	Website      string    `json:"website,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OwnerBootstrap promotes an existing user to owner of a freshly created
// tenant inside the same transaction as the tenant insert.
type OwnerBootstrap struct {
	UserID string
	Role   EmployeeRole
}

// TenantFilter narrows and pages tenant listings
type TenantFilter struct {
	Status *TenantStatus
	Search string
	Page   int
	Limit  int
}

// TenantRepository owns tenants, their organizations, and the moderation log.
// All multi-row mutations run inside a single database transaction.
type TenantRepository interface {
	// Create inserts the tenant, its organization, and (when owner is
	// non-nil) the owner employee plus user promotion, atomically.
	Create(ctx context.Context, tenant *Tenant, org *Organization, owner *OwnerBootstrap) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetOrganization(ctx context.Context, tenantID string) (*Organization, error)
	List(ctx context.Context, filter TenantFilter) ([]*Tenant, int, error)
	// Transition flips status to `to` only when the current status is one of
	// `from`, appending a moderation entry in the same transaction. A tenant
	// that does not exist, is soft-deleted, or is not in an allowed source
	// state yields a not-found error; transitions are never silent no-ops.
	Transition(ctx context.Context, id string, from []TenantStatus, to TenantStatus, by, reason string) (*Tenant, error)
	ModerationLog(ctx context.Context, id string) ([]ModerationEntry, error)
	SoftDelete(ctx context.Context, id string) error
	Recover(ctx context.Context, id string) error
	// HardDelete permanently removes the tenant and everything it owns.
	// Irreversible; reserved for explicit administrative purge.
	HardDelete(ctx context.Context, id string) error
}
