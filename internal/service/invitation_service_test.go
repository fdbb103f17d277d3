package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/email"
	"github.com/yourorg/tenantplane/internal/security"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newInvitationEnv(t *testing.T) (*InvitationService, *memStores, *memProvider, *testClock) {
	t.Helper()
	s := newMemStores()
	clk := &testClock{t: time.Now()}
	provider := &memProvider{s: s}
	guard := security.NewGuard(&memEmployeeRepo{s: s}, security.NewLocalRoleCache(), nil)
	mailer := email.NewDispatcher(email.NewLogSender(nil), nil)

	svc := NewInvitationService(
		&memInvitationRepo{s: s, now: clk.now},
		&memTenantRepo{s: s},
		&memUserRepo{s: s},
		&memEmployeeRepo{s: s},
		provider, guard, mailer,
		"https://app.tenantplane.io/",
		nil,
	)
	svc.now = clk.now

	s.tenants["acme"] = &domain.Tenant{ID: "acme", UUID: "t-uuid-1", Status: domain.TenantApproved}
	s.orgs["acme"] = &domain.Organization{TenantID: "acme", Name: "Acme Corp", ContactEmail: "contact@acme.io"}
	return svc, s, provider, clk
}

func acmeAdmin() security.Actor {
	return security.Actor{UserID: "adm-1", Email: "admin@acme.io", TenantID: "acme", Role: domain.RoleTenantAdmin}
}

func TestCreateInvitation_RoundTrip(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{
		Email: " New.Hire@Acme.io ", Role: "manager", FirstName: "Noa",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, issued.Token)
	assert.Contains(t, issued.URL, issued.Token)
	assert.False(t, strings.Contains(issued.URL, "//invitations"), "base url trailing slash must be trimmed")
	assert.Equal(t, "new.hire@acme.io", issued.Invitation.Email)
	assert.Equal(t, domain.EmployeeManager, issued.Invitation.Role)
	assert.Equal(t, domain.InvitationPending, issued.Invitation.Status)
	assert.NotEqual(t, issued.Token, issued.Invitation.TokenHash, "stored form must be the digest")

	check, err := svc.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, "new.hire@acme.io", check.Email)
	assert.Equal(t, "Acme Corp", check.Organization)
}

func TestGetByToken_ExactMatchOnly(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "pat@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	inv, err := svc.GetByToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Invitation.ID, inv.ID)
	assert.Equal(t, domain.InvitationPending, inv.EffectiveStatus(time.Now()))

	// Flipping a single character must miss the digest lookup entirely.
	mutated := []byte(issued.Token)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	_, err = svc.GetByToken(ctx, string(mutated))
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCreateInvitation_GuardRejectsOtherTenant(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)

	outsider := security.Actor{UserID: "adm-2", TenantID: "globex", Role: domain.RoleTenantAdmin}
	_, err := svc.Create(context.Background(), outsider, "acme", CreateInvitationInput{Email: "x@acme.io", Role: "STAFF"})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestCreateInvitation_InvalidInput(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()
	admin := acmeAdmin()

	_, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "nope", Role: "STAFF"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "x@acme.io", Role: "OVERLORD"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestCreateInvitation_ExistingMemberConflicts(t *testing.T) {
	svc, s, _, _ := newInvitationEnv(t)

	tid := "acme"
	s.users["u-7"] = &domain.User{ID: "u-7", Email: "vet@acme.io", TenantID: &tid, Role: domain.RoleMember}
	s.employees[employeeKey("acme", "u-7")] = &domain.Employee{ID: "e-7", TenantID: "acme", UserID: "u-7", Role: domain.EmployeeStaff}

	_, err := svc.Create(context.Background(), acmeAdmin(), "acme", CreateInvitationInput{Email: "vet@acme.io", Role: "STAFF"})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestCreateInvitation_ReinviteReusesRowAndKillsOldToken(t *testing.T) {
	svc, s, _, _ := newInvitationEnv(t)
	ctx := context.Background()
	admin := acmeAdmin()

	first, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "STAFF"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "MANAGER"})
	require.NoError(t, err)

	// one row per (tenant, email), role refreshed on reissue
	assert.Equal(t, first.Invitation.ID, second.Invitation.ID)
	assert.Len(t, s.invs, 1)
	assert.Equal(t, domain.EmployeeManager, s.invs[second.Invitation.ID].Role)

	old, err := svc.Validate(ctx, first.Token)
	require.NoError(t, err)
	assert.False(t, old.Valid)
	assert.Equal(t, "not_found", old.Reason)

	fresh, err := svc.Validate(ctx, second.Token)
	require.NoError(t, err)
	assert.True(t, fresh.Valid)
}

func TestAccept_SignupCreatesBoundMember(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "MANAGER"})
	require.NoError(t, err)

	outcome, err := svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "Hire@Acme.io", Password: "hunter22", Name: "Noa"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvitationAccepted, outcome.Invitation.Status)
	assert.Equal(t, domain.EmployeeManager, outcome.Employee.Role)
	require.NotNil(t, outcome.User.TenantID)
	assert.Equal(t, "acme", *outcome.User.TenantID)
	assert.Equal(t, domain.RoleMember, outcome.User.Role)

	// the token is single-use
	_, err = svc.Accept(ctx, nil, AcceptInput{Token: issued.Token, UserID: outcome.User.ID})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Contains(t, err.Error(), "ACCEPTED")

	check, err := svc.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "accepted", check.Reason)
}

func TestAccept_AdminInvitationGrantsTenantAdmin(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "boss@acme.io", Role: "ADMIN"})
	require.NoError(t, err)

	outcome, err := svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "boss@acme.io", Password: "hunter22", Name: "Sam"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTenantAdmin, outcome.User.Role)
	assert.Equal(t, domain.EmployeeAdmin, outcome.Employee.Role)
}

func TestAccept_EmailMismatchIsForbidden(t *testing.T) {
	svc, s, _, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	s.users["u-8"] = &domain.User{ID: "u-8", Email: "somebody.else@acme.io", Role: domain.RoleMember}
	session := security.Actor{UserID: "u-8", Email: "somebody.else@acme.io"}
	_, err = svc.Accept(ctx, &session, AcceptInput{Token: issued.Token})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	// signup mismatch is rejected before any identity is created
	usersBefore := len(s.users)
	_, err = svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "wrong@acme.io", Password: "hunter22"},
	})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
	assert.Len(t, s.users, usersBefore)
}

func TestAccept_ExpiredToken(t *testing.T) {
	svc, _, _, clk := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "late@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	clk.advance(domain.InvitationTTL + time.Minute)

	check, err := svc.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "expired", check.Reason)

	_, err = svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "late@acme.io", Password: "hunter22"},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Contains(t, err.Error(), "EXPIRED")
}

func TestAccept_CompensatesSignupOnStoreFailure(t *testing.T) {
	svc, s, provider, _ := newInvitationEnv(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, acmeAdmin(), "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	s.acceptErr = domain.NewDependency("membership insert failed", nil)
	_, err = svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "hire@acme.io", Password: "hunter22"},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindDependency))
	require.Len(t, provider.deleted, 1)
	assert.NotContains(t, s.users, provider.deleted[0])
}

func TestResend_AfterExpiryIssuesWorkingToken(t *testing.T) {
	svc, _, _, clk := newInvitationEnv(t)
	ctx := context.Background()
	admin := acmeAdmin()

	issued, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "slow@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	clk.advance(domain.InvitationTTL + time.Hour)

	// the stored row now reads as EXPIRED
	listed, total, err := svc.List(ctx, admin, "acme", domain.InvitationFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, domain.InvitationExpired, listed[0].Status)

	reissued, err := svc.Resend(ctx, admin, "acme", issued.Invitation.ID)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Token, reissued.Token)

	check, err := svc.Validate(ctx, reissued.Token)
	require.NoError(t, err)
	assert.True(t, check.Valid)
}

func TestRevoke_IsTerminal(t *testing.T) {
	svc, _, _, _ := newInvitationEnv(t)
	ctx := context.Background()
	admin := acmeAdmin()

	issued, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "gone@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	inv, err := svc.Revoke(ctx, admin, "acme", issued.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationRevoked, inv.Status)

	check, err := svc.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "revoked", check.Reason)

	// no resend, role change, or accept after revocation
	_, err = svc.Resend(ctx, admin, "acme", issued.Invitation.ID)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	_, err = svc.UpdateRole(ctx, admin, "acme", issued.Invitation.ID, "MANAGER")
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	_, err = svc.Accept(ctx, nil, AcceptInput{
		Token:  issued.Token,
		Signup: &OwnerSignup{Email: "gone@acme.io", Password: "hunter22"},
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestUpdateRole_PendingOnly(t *testing.T) {
	svc, s, _, _ := newInvitationEnv(t)
	ctx := context.Background()
	admin := acmeAdmin()

	issued, err := svc.Create(ctx, admin, "acme", CreateInvitationInput{Email: "hire@acme.io", Role: "STAFF"})
	require.NoError(t, err)

	inv, err := svc.UpdateRole(ctx, admin, "acme", issued.Invitation.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, domain.EmployeeManager, inv.Role)
	assert.Equal(t, domain.EmployeeManager, s.invs[issued.Invitation.ID].Role)
}
