package domain

import (
	"context"
	"strings"
	"time"
)

// InvitationStatus represents the status of an invitation. EXPIRED is derived
// at read time from ExpiresAt and is never written to storage; only
// PENDING -> ACCEPTED and PENDING -> REVOKED are persisted transitions.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// InvitationTTL is the fixed lifetime of an invitation token
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a single-use, expiring invite keyed by (tenant, email). The
// row is reused on re-invite rather than duplicated, so at most one exists
// per email per tenant. TokenHash is the only stored form of the bearer
// token; the plaintext is returned exactly once at creation or resend.
type Invitation struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenantId"`
	Email      string           `json:"email"`
	Role       EmployeeRole     `json:"role"`
	Status     InvitationStatus `json:"status"`
	TokenHash  string           `json:"-"`
	ExpiresAt  time.Time        `json:"expiresAt"`
	InvitedBy  *string          `json:"invitedByUserId,omitempty"`
	FirstName  string           `json:"firstName,omitempty"`
	LastName   string           `json:"lastName,omitempty"`
	AcceptedAt *time.Time       `json:"acceptedAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// EffectiveStatus layers expiry over the stored status. This is the single
// place the derived EXPIRED state is computed; every read boundary applies it.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

// NormalizeEmail is the canonical form used for all invitation email
// equality and uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InvitationFilter narrows and pages invitation listings. Status filters on
// the effective status, so EXPIRED is a valid filter value.
type InvitationFilter struct {
	Status *InvitationStatus
	Search string
	Page   int
	Limit  int
}

// AcceptResult carries the rows touched by a successful acceptance
type AcceptResult struct {
	Invitation *Invitation
	Employee   *Employee
}

// InvitationRepository owns invitation rows and the transactional accept
// path. Mutations scoped by tenant return not-found when the row does not
// belong to that tenant; isolation is enforced in the query predicate.
type InvitationRepository interface {
	// Upsert inserts a new invitation or reuses the existing (tenant, email)
	// row, resetting role, names, token hash, expiry, and clearing
	// acceptedAt. An existing row whose stored status is ACCEPTED is
	// immutable and yields a conflict.
	Upsert(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, tenantID, id string) (*Invitation, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	List(ctx context.Context, tenantID string, filter InvitationFilter) ([]*Invitation, int, error)
	Revoke(ctx context.Context, tenantID, id string) (*Invitation, error)
	UpdateRole(ctx context.Context, tenantID, id string, role EmployeeRole) (*Invitation, error)
	// RotateToken stores a fresh token hash and expiry for a resend,
	// permanently invalidating any previously issued token.
	RotateToken(ctx context.Context, tenantID, id, tokenHash string, expiresAt time.Time) (*Invitation, error)
	// Accept atomically flips PENDING -> ACCEPTED, inserts the employee
	// membership idempotently, and promotes the user's tenant binding and
	// role. Exactly one concurrent caller wins; the rest see a conflict.
	Accept(ctx context.Context, invitationID, userID string) (*AcceptResult, error)
}
