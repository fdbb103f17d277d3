package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/authprovider"
	"github.com/yourorg/tenantplane/internal/infrastructure/email"
	"github.com/yourorg/tenantplane/internal/observability/metrics"
	"github.com/yourorg/tenantplane/internal/security"
)

// slugPattern constrains caller-chosen tenant ids: lowercase, digits,
// hyphens, 2-63 chars, no leading hyphen
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// TenantService orchestrates the tenant lifecycle: registration, the
// moderation state machine, and deletion. Every mutation is one store
// transaction; notifications go out best-effort after commit.
type TenantService struct {
	tenants  domain.TenantRepository
	provider authprovider.Provider
	guard    *security.Guard
	mailer   *email.Dispatcher
	logger   *slog.Logger
}

// NewTenantService creates the tenant lifecycle orchestrator
func NewTenantService(
	tenants domain.TenantRepository,
	provider authprovider.Provider,
	guard *security.Guard,
	mailer *email.Dispatcher,
	logger *slog.Logger,
) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{
		tenants:  tenants,
		provider: provider,
		guard:    guard,
		mailer:   mailer,
		logger:   logger,
	}
}

// OrganizationInput is the descriptive profile supplied at registration
type OrganizationInput struct {
	Name         string `json:"name"`
	LegalName    string `json:"legalName"`
	Country      string `json:"country"`
	ContactEmail string `json:"contactEmail"`
	Website      string `json:"website"`
}

// OwnerSignup bootstraps the tenant's first admin as a fresh identity
type OwnerSignup struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RegisterInput is the tenant self-registration request
type RegisterInput struct {
	TenantID     string            `json:"id"`
	Organization OrganizationInput `json:"organization"`
	Owner        *OwnerSignup      `json:"owner,omitempty"`
}

// RegisterResult is returned to the registering caller
type RegisterResult struct {
	Tenant       *domain.Tenant       `json:"tenant"`
	Organization *domain.Organization `json:"organization"`
	OwnerUserID  string               `json:"ownerUserId,omitempty"`
}

// Register creates a tenant in PENDING together with its organization and,
// when an owner signup is supplied, the owner identity and membership. The
// identity is created at the auth provider first; if the store transaction
// then fails, the identity is deleted again on a best-effort basis so a
// retry of the registration is not blocked by a half-created account.
func (s *TenantService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input.TenantID = strings.TrimSpace(strings.ToLower(input.TenantID))
	if !slugPattern.MatchString(input.TenantID) {
		return nil, domain.NewValidation("tenant id must be a lowercase slug (2-63 chars)")
	}
	if strings.TrimSpace(input.Organization.Name) == "" {
		return nil, domain.NewValidation("organization name is required")
	}
	contact := domain.NormalizeEmail(input.Organization.ContactEmail)
	if contact == "" || !strings.Contains(contact, "@") {
		return nil, domain.NewValidation("a valid organization contact email is required")
	}
	input.Organization.ContactEmail = contact

	var ownerID string
	var owner *domain.OwnerBootstrap
	if input.Owner != nil {
		id, err := s.provider.SignUpWithPassword(ctx, input.Owner.Email, input.Owner.Password, input.Owner.Name)
		if err != nil {
			metrics.ObserveTenantRegistration("error")
			return nil, err
		}
		ownerID = id
		owner = &domain.OwnerBootstrap{UserID: id, Role: domain.EmployeeAdmin}
	}

	tenant := &domain.Tenant{
		ID:     input.TenantID,
		UUID:   uuid.NewString(),
		Status: domain.TenantPending,
	}
	if ownerID != "" {
		tenant.OwnerID = &ownerID
		tenant.CreatedBy = &ownerID
	}
	org := &domain.Organization{
		Name:         strings.TrimSpace(input.Organization.Name),
		LegalName:    strings.TrimSpace(input.Organization.LegalName),
		Country:      strings.TrimSpace(input.Organization.Country),
		ContactEmail: contact,
		Website:      strings.TrimSpace(input.Organization.Website),
	}

	if err := s.tenants.Create(ctx, tenant, org, owner); err != nil {
		metrics.ObserveTenantRegistration("error")
		s.compensateSignup(ctx, ownerID, err)
		return nil, err
	}

	metrics.ObserveTenantRegistration("created")
	s.mailer.Dispatch(contact, email.KindTenantReceived, map[string]string{
		"organization": org.Name,
	})

	return &RegisterResult{Tenant: tenant, Organization: org, OwnerUserID: ownerID}, nil
}

// compensateSignup deletes an identity created for a registration whose
// store transaction failed. Cleanup failure is logged, never returned: the
// original error must stay visible to the caller.
func (s *TenantService) compensateSignup(ctx context.Context, ownerID string, cause error) {
	if ownerID == "" {
		return
	}
	if err := s.provider.DeleteUser(ctx, ownerID); err != nil {
		s.logger.Error("compensating identity cleanup failed",
			slog.String("user_id", ownerID),
			slog.String("cleanup_error", err.Error()),
			slog.String("original_error", cause.Error()),
		)
		return
	}
	s.logger.Info("compensating identity cleanup succeeded", slog.String("user_id", ownerID))
}

// Approve moves a PENDING tenant to APPROVED. Platform administrators only;
// a second approval fails loudly rather than silently succeeding.
func (s *TenantService) Approve(ctx context.Context, actor security.Actor, id, reason string) (*domain.Tenant, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.Transition(ctx, id,
		[]domain.TenantStatus{domain.TenantPending}, domain.TenantApproved, actor.UserID, reason)
	if err != nil {
		metrics.ObserveTenantTransition("approve", "error")
		return nil, err
	}
	metrics.ObserveTenantTransition("approve", "ok")
	s.notifyModeration(ctx, tenant, email.KindTenantApproved, reason)
	return tenant, nil
}

// Reject moves a PENDING tenant to REJECTED. The reason is part of the
// audit trail and is mandatory.
func (s *TenantService) Reject(ctx context.Context, actor security.Actor, id, reason string) (*domain.Tenant, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidation("a rejection reason is required")
	}
	tenant, err := s.tenants.Transition(ctx, id,
		[]domain.TenantStatus{domain.TenantPending}, domain.TenantRejected, actor.UserID, reason)
	if err != nil {
		metrics.ObserveTenantTransition("reject", "error")
		return nil, err
	}
	metrics.ObserveTenantTransition("reject", "ok")
	s.notifyModeration(ctx, tenant, email.KindTenantRejected, reason)
	return tenant, nil
}

// Suspend takes an active tenant out of service
func (s *TenantService) Suspend(ctx context.Context, actor security.Actor, id, reason string) (*domain.Tenant, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.Transition(ctx, id,
		[]domain.TenantStatus{domain.TenantApproved, domain.TenantReinstated}, domain.TenantSuspended, actor.UserID, reason)
	if err != nil {
		metrics.ObserveTenantTransition("suspend", "error")
		return nil, err
	}
	metrics.ObserveTenantTransition("suspend", "ok")
	return tenant, nil
}

// Reinstate returns a suspended tenant to service
func (s *TenantService) Reinstate(ctx context.Context, actor security.Actor, id, reason string) (*domain.Tenant, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.Transition(ctx, id,
		[]domain.TenantStatus{domain.TenantSuspended}, domain.TenantReinstated, actor.UserID, reason)
	if err != nil {
		metrics.ObserveTenantTransition("reinstate", "error")
		return nil, err
	}
	metrics.ObserveTenantTransition("reinstate", "ok")
	return tenant, nil
}

// Get returns a tenant to a platform admin or to its own members
func (s *TenantService) Get(ctx context.Context, actor security.Actor, id string) (*domain.Tenant, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		if actor.TenantID != id {
			return nil, domain.NewForbidden("tenant access required")
		}
	}
	return s.tenants.GetByID(ctx, id)
}

// GetOrganization returns the organization profile under the same access
// rule as Get
func (s *TenantService) GetOrganization(ctx context.Context, actor security.Actor, id string) (*domain.Organization, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		if actor.TenantID != id {
			return nil, domain.NewForbidden("tenant access required")
		}
	}
	return s.tenants.GetOrganization(ctx, id)
}

// List returns tenants for the platform moderation view
func (s *TenantService) List(ctx context.Context, actor security.Actor, filter domain.TenantFilter) ([]*domain.Tenant, int, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.tenants.List(ctx, filter)
}

// ModerationLog returns the append-only transition history of a tenant
func (s *TenantService) ModerationLog(ctx context.Context, actor security.Actor, id string) ([]domain.ModerationEntry, error) {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.tenants.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.tenants.ModerationLog(ctx, id)
}

// SoftDelete hides the tenant from all lookup paths, keeping it recoverable
func (s *TenantService) SoftDelete(ctx context.Context, actor security.Actor, id string) error {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return err
	}
	return s.tenants.SoftDelete(ctx, id)
}

// Recover clears the soft-delete marker
func (s *TenantService) Recover(ctx context.Context, actor security.Actor, id string) error {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return err
	}
	return s.tenants.Recover(ctx, id)
}

// HardDelete permanently purges a tenant and everything it owns
func (s *TenantService) HardDelete(ctx context.Context, actor security.Actor, id string) error {
	if err := s.guard.AssertPlatformAdmin(actor); err != nil {
		return err
	}
	s.logger.Warn("hard delete requested",
		slog.String("tenant_id", id),
		slog.String("by", actor.UserID),
	)
	return s.tenants.HardDelete(ctx, id)
}

// notifyModeration emails the organization contact about a moderation
// decision. The lookup and the send are both best-effort.
func (s *TenantService) notifyModeration(ctx context.Context, tenant *domain.Tenant, kind email.Kind, reason string) {
	org, err := s.tenants.GetOrganization(ctx, tenant.ID)
	if err != nil {
		s.logger.Warn("skipping moderation notification",
			slog.String("tenant_id", tenant.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.mailer.Dispatch(org.ContactEmail, kind, map[string]string{
		"organization": org.Name,
		"reason":       reason,
	})
}
