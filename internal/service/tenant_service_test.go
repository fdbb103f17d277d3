package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/email"
	"github.com/yourorg/tenantplane/internal/security"
)

func newTenantEnv(t *testing.T) (*TenantService, *memStores, *memProvider) {
	t.Helper()
	s := newMemStores()
	provider := &memProvider{s: s}
	guard := security.NewGuard(&memEmployeeRepo{s: s}, security.NewLocalRoleCache(), nil)
	mailer := email.NewDispatcher(email.NewLogSender(nil), nil)
	svc := NewTenantService(&memTenantRepo{s: s}, provider, guard, mailer, nil)
	return svc, s, provider
}

func platformAdmin() security.Actor {
	return security.Actor{UserID: "root-1", Email: "ops@platform.io", Role: domain.RolePlatformAdmin}
}

func registerInput(id string) RegisterInput {
	return RegisterInput{
		TenantID: id,
		Organization: OrganizationInput{
			Name:         "Acme Corp",
			ContactEmail: "contact@acme.io",
		},
		Owner: &OwnerSignup{Email: "owner@acme.io", Password: "hunter22", Name: "Ada"},
	}
}

func TestRegister_CreatesPendingTenantWithOwner(t *testing.T) {
	svc, s, _ := newTenantEnv(t)

	result, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	assert.Equal(t, "acme", result.Tenant.ID)
	assert.Equal(t, domain.TenantPending, result.Tenant.Status)
	assert.NotEmpty(t, result.Tenant.UUID)
	require.NotEmpty(t, result.OwnerUserID)

	owner := s.users[result.OwnerUserID]
	require.NotNil(t, owner)
	require.NotNil(t, owner.TenantID)
	assert.Equal(t, "acme", *owner.TenantID)
	assert.Equal(t, domain.RoleTenantAdmin, owner.Role)

	emp := s.employees[employeeKey("acme", result.OwnerUserID)]
	require.NotNil(t, emp)
	assert.Equal(t, domain.EmployeeAdmin, emp.Role)
}

func TestRegister_RejectsBadSlug(t *testing.T) {
	svc, _, _ := newTenantEnv(t)

	for _, id := range []string{"", "-acme", "a b", "x", "acme_corp"} {
		input := registerInput(id)
		input.TenantID = id
		_, err := svc.Register(context.Background(), input)
		assert.True(t, domain.IsKind(err, domain.KindValidation), "slug %q should be rejected", id)
	}
}

func TestRegister_RequiresContactEmail(t *testing.T) {
	svc, _, _ := newTenantEnv(t)

	input := registerInput("acme")
	input.Organization.ContactEmail = "not-an-email"
	_, err := svc.Register(context.Background(), input)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestRegister_CompensatesOwnerSignupOnStoreFailure(t *testing.T) {
	svc, s, provider := newTenantEnv(t)
	boom := errors.New("db down")
	s.createTenantErr = boom

	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.ErrorIs(t, err, boom)

	// the half-created identity must be removed so a retry is possible
	require.Len(t, provider.deleted, 1)
	assert.NotContains(t, s.users, provider.deleted[0])
}

func TestApprove_RequiresPlatformAdmin(t *testing.T) {
	svc, _, _ := newTenantEnv(t)
	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	member := security.Actor{UserID: "u-9", Role: domain.RoleTenantAdmin, TenantID: "acme"}
	_, err = svc.Approve(context.Background(), member, "acme", "")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = svc.Approve(context.Background(), security.Actor{}, "acme", "")
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestApprove_SecondApprovalConflicts(t *testing.T) {
	svc, s, _ := newTenantEnv(t)
	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	tenant, err := svc.Approve(context.Background(), platformAdmin(), "acme", "looks legit")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantApproved, tenant.Status)
	require.Len(t, s.modLog["acme"], 1)
	assert.Equal(t, domain.TenantApproved, s.modLog["acme"][0].Action)

	_, err = svc.Approve(context.Background(), platformAdmin(), "acme", "again")
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	// a failed transition never appends to the log
	assert.Len(t, s.modLog["acme"], 1)
}

func TestReject_RequiresReason(t *testing.T) {
	svc, s, _ := newTenantEnv(t)
	_, err := svc.Register(context.Background(), registerInput("acme"))
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), platformAdmin(), "acme", "  ")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Empty(t, s.modLog["acme"])

	tenant, err := svc.Reject(context.Background(), platformAdmin(), "acme", "incomplete paperwork")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantRejected, tenant.Status)
	require.Len(t, s.modLog["acme"], 1)
	assert.Equal(t, "incomplete paperwork", s.modLog["acme"][0].Reason)
}

func TestSuspendReinstateCycle(t *testing.T) {
	svc, s, _ := newTenantEnv(t)
	admin := platformAdmin()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("acme"))
	require.NoError(t, err)

	// suspend before approval is invalid
	_, err = svc.Suspend(ctx, admin, "acme", "tos violation")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = svc.Approve(ctx, admin, "acme", "")
	require.NoError(t, err)

	tenant, err := svc.Suspend(ctx, admin, "acme", "tos violation")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantSuspended, tenant.Status)

	// reinstate only applies to suspended tenants
	tenant, err = svc.Reinstate(ctx, admin, "acme", "resolved")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantReinstated, tenant.Status)

	_, err = svc.Reinstate(ctx, admin, "acme", "")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// a reinstated tenant can be suspended again
	_, err = svc.Suspend(ctx, admin, "acme", "repeat violation")
	require.NoError(t, err)

	require.Len(t, s.modLog["acme"], 4)
}

func TestModerationLog_OrderedHistory(t *testing.T) {
	svc, _, _ := newTenantEnv(t)
	admin := platformAdmin()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("acme"))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, "acme", "ok")
	require.NoError(t, err)
	_, err = svc.Suspend(ctx, admin, "acme", "abuse")
	require.NoError(t, err)

	entries, err := svc.ModerationLog(ctx, admin, "acme")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.TenantApproved, entries[0].Action)
	assert.Equal(t, domain.TenantSuspended, entries[1].Action)
	assert.Equal(t, admin.UserID, entries[1].By)
}

func TestSoftDelete_HidesAndRecoverRestores(t *testing.T) {
	svc, _, _ := newTenantEnv(t)
	admin := platformAdmin()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("acme"))
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, admin, "acme"))

	_, err = svc.Get(ctx, admin, "acme")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	// moderation is also blind to soft-deleted tenants
	_, err = svc.Approve(ctx, admin, "acme", "")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	require.NoError(t, svc.Recover(ctx, admin, "acme"))
	tenant, err := svc.Get(ctx, admin, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantPending, tenant.Status)
}

func TestGet_TenantMemberCanReadOwnTenant(t *testing.T) {
	svc, _, _ := newTenantEnv(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("acme"))
	require.NoError(t, err)

	insider := security.Actor{UserID: "u-2", TenantID: "acme", Role: domain.RoleMember}
	_, err = svc.Get(ctx, insider, "acme")
	require.NoError(t, err)

	outsider := security.Actor{UserID: "u-3", TenantID: "globex", Role: domain.RoleMember}
	_, err = svc.Get(ctx, outsider, "acme")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}
