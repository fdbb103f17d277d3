package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/authprovider"
	"github.com/yourorg/tenantplane/internal/infrastructure/email"
	"github.com/yourorg/tenantplane/internal/observability/metrics"
	"github.com/yourorg/tenantplane/internal/security"
	"github.com/yourorg/tenantplane/internal/token"
)

// InvitationService orchestrates onboarding by invitation: issuing and
// managing tokens on behalf of tenant admins, and redeeming them for
// membership. Plaintext tokens exist only in the return values of Create
// and Resend; everything stored or listed carries the hash.
type InvitationService struct {
	invitations domain.InvitationRepository
	tenants     domain.TenantRepository
	users       domain.UserRepository
	employees   domain.EmployeeRepository
	provider    authprovider.Provider
	guard       *security.Guard
	mailer      *email.Dispatcher
	baseURL     string
	logger      *slog.Logger

	now func() time.Time
}

// NewInvitationService creates the invitation orchestrator. baseURL is the
// public origin invite links are built against, e.g. https://app.example.com.
func NewInvitationService(
	invitations domain.InvitationRepository,
	tenants domain.TenantRepository,
	users domain.UserRepository,
	employees domain.EmployeeRepository,
	provider authprovider.Provider,
	guard *security.Guard,
	mailer *email.Dispatcher,
	baseURL string,
	logger *slog.Logger,
) *InvitationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationService{
		invitations: invitations,
		tenants:     tenants,
		users:       users,
		employees:   employees,
		provider:    provider,
		guard:       guard,
		mailer:      mailer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

// CreateInvitationInput is the tenant-admin request to invite an email
type CreateInvitationInput struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// IssuedInvitation carries the one-time plaintext token alongside the
// stored record. The token is never retrievable again.
type IssuedInvitation struct {
	Invitation *domain.Invitation `json:"invitation"`
	Token      string             `json:"token"`
	URL        string             `json:"url"`
}

// Create issues (or reissues) an invitation for an email address within a
// tenant. A prior non-accepted invitation for the same address is reused
// and its token replaced; an accepted one blocks the request.
func (s *InvitationService) Create(ctx context.Context, actor security.Actor, tenantID string, input CreateInvitationInput) (*IssuedInvitation, error) {
	if err := s.guard.AssertTenantAdmin(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	addr := domain.NormalizeEmail(input.Email)
	if addr == "" || !strings.Contains(addr, "@") {
		return nil, domain.NewValidation("a valid email address is required")
	}
	role := domain.EmployeeRole(strings.ToUpper(strings.TrimSpace(input.Role)))
	if !domain.ValidInvitationRole(role) {
		return nil, domain.NewValidation(fmt.Sprintf("invalid role %q", input.Role))
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// an existing member needs a role change, not a second invitation
	if user, err := s.users.GetByEmail(ctx, addr); err == nil {
		if _, err := s.employees.Get(ctx, tenantID, user.ID); err == nil {
			return nil, domain.NewConflict("user is already a member of this tenant")
		} else if !domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	plaintext, hash, err := token.Generate()
	if err != nil {
		return nil, domain.NewDependency("generating invitation token", err)
	}

	now := s.now()
	inv := &domain.Invitation{
		ID:        uuid.NewString(),
		TenantID:  tenant.ID,
		Email:     addr,
		Role:      role,
		Status:    domain.InvitationPending,
		TokenHash: hash,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		ExpiresAt: now.Add(domain.InvitationTTL),
		CreatedAt: now,
	}
	if actor.UserID != "" {
		inv.InvitedBy = &actor.UserID
	}

	if err := s.invitations.Upsert(ctx, inv); err != nil {
		metrics.ObserveInvitationIssued("create", "error")
		return nil, err
	}

	metrics.ObserveInvitationIssued("create", "ok")
	url := s.inviteURL(plaintext)
	s.sendInvitationMail(ctx, inv, url)

	return &IssuedInvitation{Invitation: inv, Token: plaintext, URL: url}, nil
}

// Resend rotates the token of a pending or expired invitation and emails
// the new link. The previous token stops working immediately.
func (s *InvitationService) Resend(ctx context.Context, actor security.Actor, tenantID, invitationID string) (*IssuedInvitation, error) {
	if err := s.guard.AssertTenantAdmin(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	plaintext, hash, err := token.Generate()
	if err != nil {
		return nil, domain.NewDependency("generating invitation token", err)
	}
	stored, err := s.invitations.RotateToken(ctx, tenantID, invitationID, hash, s.now().Add(domain.InvitationTTL))
	if err != nil {
		metrics.ObserveInvitationIssued("resend", "error")
		return nil, err
	}
	metrics.ObserveInvitationIssued("resend", "ok")
	url := s.inviteURL(plaintext)
	s.sendInvitationMail(ctx, stored, url)
	return &IssuedInvitation{Invitation: stored, Token: plaintext, URL: url}, nil
}

// Revoke permanently invalidates a pending invitation
func (s *InvitationService) Revoke(ctx context.Context, actor security.Actor, tenantID, invitationID string) (*domain.Invitation, error) {
	if err := s.guard.AssertTenantAdmin(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	return s.invitations.Revoke(ctx, tenantID, invitationID)
}

// UpdateRole changes the role a pending invitation will grant on accept
func (s *InvitationService) UpdateRole(ctx context.Context, actor security.Actor, tenantID, invitationID, role string) (*domain.Invitation, error) {
	if err := s.guard.AssertTenantAdmin(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	parsed := domain.EmployeeRole(strings.ToUpper(strings.TrimSpace(role)))
	if !domain.ValidInvitationRole(parsed) {
		return nil, domain.NewValidation(fmt.Sprintf("invalid role %q", role))
	}
	inv, err := s.invitations.UpdateRole(ctx, tenantID, invitationID, parsed)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(inv), nil
}

// List returns a tenant's invitations with expiry applied, so a stored
// PENDING row past its deadline reads as EXPIRED
func (s *InvitationService) List(ctx context.Context, actor security.Actor, tenantID string, filter domain.InvitationFilter) ([]*domain.Invitation, int, error) {
	if err := s.guard.AssertTenantAdmin(ctx, actor, tenantID); err != nil {
		return nil, 0, err
	}
	invs, total, err := s.invitations.List(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i, inv := range invs {
		invs[i] = s.withEffectiveStatus(inv)
	}
	return invs, total, nil
}

// GetByToken resolves a plaintext token to its invitation, with the
// effective status applied. Unknown tokens come back NotFound.
func (s *InvitationService) GetByToken(ctx context.Context, plaintext string) (*domain.Invitation, error) {
	inv, err := s.invitations.GetByTokenHash(ctx, token.Hash(plaintext))
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(inv), nil
}

// TokenCheck is the unauthenticated answer to "is this invite link still
// good". It reveals only what the landing page needs to render.
type TokenCheck struct {
	Valid        bool   `json:"valid"`
	Reason       string `json:"reason,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// Validate resolves a plaintext token and reports whether it can still be
// accepted. Unknown tokens and dead ones get a reason, never an error.
func (s *InvitationService) Validate(ctx context.Context, plaintext string) (*TokenCheck, error) {
	inv, err := s.invitations.GetByTokenHash(ctx, token.Hash(plaintext))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return &TokenCheck{Valid: false, Reason: "not_found"}, nil
		}
		return nil, err
	}
	eff := inv.EffectiveStatus(s.now())
	if eff != domain.InvitationPending {
		return &TokenCheck{Valid: false, Reason: strings.ToLower(string(eff))}, nil
	}
	check := &TokenCheck{
		Valid: true,
		Email: inv.Email,
		Role:  string(inv.Role),
	}
	if org, err := s.tenants.GetOrganization(ctx, inv.TenantID); err == nil {
		check.Organization = org.Name
	}
	return check, nil
}

// AcceptInput redeems a token. Identity comes from exactly one of: the
// session actor, an explicit user id, or a fresh signup.
type AcceptInput struct {
	Token  string       `json:"token"`
	UserID string       `json:"userId,omitempty"`
	Signup *OwnerSignup `json:"signup,omitempty"`
}

// AcceptOutcome reports the membership created by redeeming an invitation
type AcceptOutcome struct {
	Invitation *domain.Invitation `json:"invitation"`
	Employee   *domain.Employee   `json:"employee"`
	User       *domain.User       `json:"user"`
}

// Accept redeems an invitation for the resolved identity. The token must
// still be effectively pending, the identity's email must match the
// invited address exactly, and exactly one concurrent redeemer wins.
func (s *InvitationService) Accept(ctx context.Context, actor *security.Actor, input AcceptInput) (*AcceptOutcome, error) {
	if strings.TrimSpace(input.Token) == "" {
		return nil, domain.NewValidation("token is required")
	}
	inv, err := s.invitations.GetByTokenHash(ctx, token.Hash(input.Token))
	if err != nil {
		metrics.ObserveInvitationAccept("error")
		return nil, err
	}
	if eff := inv.EffectiveStatus(s.now()); eff != domain.InvitationPending {
		metrics.ObserveInvitationAccept("conflict")
		return nil, domain.NewConflict(fmt.Sprintf("invitation is %s and cannot be accepted", eff))
	}

	user, signedUp, err := s.resolveAcceptor(ctx, actor, inv, input)
	if err != nil {
		metrics.ObserveInvitationAccept("forbidden")
		return nil, err
	}
	if domain.NormalizeEmail(user.Email) != inv.Email {
		metrics.ObserveInvitationAccept("forbidden")
		return nil, domain.NewForbidden("invitation was issued to a different email address")
	}

	result, err := s.invitations.Accept(ctx, inv.ID, user.ID)
	if err != nil {
		metrics.ObserveInvitationAccept("error")
		if signedUp {
			s.compensateAcceptSignup(ctx, user.ID, err)
		}
		return nil, err
	}

	// re-read for the tenant binding and role the transaction applied
	user, err = s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.ObserveInvitationAccept("ok")
	s.logger.Info("invitation accepted",
		slog.String("tenant_id", result.Invitation.TenantID),
		slog.String("invitation_id", result.Invitation.ID),
		slog.String("user_id", user.ID),
	)
	return &AcceptOutcome{Invitation: result.Invitation, Employee: result.Employee, User: user}, nil
}

// resolveAcceptor picks the identity redeeming the token. Session wins
// over an explicit user id, which wins over signup. Signup email mismatch
// is rejected before the identity is created.
func (s *InvitationService) resolveAcceptor(ctx context.Context, actor *security.Actor, inv *domain.Invitation, input AcceptInput) (*domain.User, bool, error) {
	switch {
	case actor != nil && actor.UserID != "":
		user, err := s.users.GetByID(ctx, actor.UserID)
		return user, false, err
	case input.UserID != "":
		user, err := s.users.GetByID(ctx, input.UserID)
		return user, false, err
	case input.Signup != nil:
		if domain.NormalizeEmail(input.Signup.Email) != inv.Email {
			return nil, false, domain.NewForbidden("invitation was issued to a different email address")
		}
		id, err := s.provider.SignUpWithPassword(ctx, input.Signup.Email, input.Signup.Password, input.Signup.Name)
		if err != nil {
			return nil, false, err
		}
		user, err := s.users.GetByID(ctx, id)
		return user, true, err
	default:
		return nil, false, domain.NewUnauthorized("sign in or sign up to accept an invitation")
	}
}

// compensateAcceptSignup removes an identity created during accept whose
// membership transaction failed. Logged, never masking the original error.
func (s *InvitationService) compensateAcceptSignup(ctx context.Context, userID string, cause error) {
	if err := s.provider.DeleteUser(ctx, userID); err != nil {
		s.logger.Error("compensating identity cleanup failed",
			slog.String("user_id", userID),
			slog.String("cleanup_error", err.Error()),
			slog.String("original_error", cause.Error()),
		)
	}
}

func (s *InvitationService) withEffectiveStatus(inv *domain.Invitation) *domain.Invitation {
	inv.Status = inv.EffectiveStatus(s.now())
	return inv
}

func (s *InvitationService) inviteURL(plaintext string) string {
	return fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, plaintext)
}

func (s *InvitationService) sendInvitationMail(ctx context.Context, inv *domain.Invitation, url string) {
	data := map[string]string{
		"role": string(inv.Role),
		"url":  url,
	}
	if org, err := s.tenants.GetOrganization(ctx, inv.TenantID); err == nil {
		data["organization"] = org.Name
	}
	s.mailer.Dispatch(inv.Email, email.KindInvitation, data)
}
