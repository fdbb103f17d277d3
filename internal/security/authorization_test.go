package security

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/tenantplane/internal/domain"
)

type memEmployeeRepo struct {
	employees map[string]*domain.Employee // key tenantID/userID
	calls     int
}

func (m *memEmployeeRepo) Get(_ context.Context, tenantID, userID string) (*domain.Employee, error) {
	m.calls++
	if emp, ok := m.employees[tenantID+"/"+userID]; ok {
		return emp, nil
	}
	return nil, domain.NewNotFound("employee not found")
}

func (m *memEmployeeRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.Employee, error) {
	return nil, nil
}

func TestAssertTenantAdmin_FastPath(t *testing.T) {
	repo := &memEmployeeRepo{employees: map[string]*domain.Employee{}}
	g := NewGuard(repo, nil, nil)

	actor := Actor{UserID: "u1", TenantID: "acme", Role: domain.RoleTenantAdmin}
	if err := g.AssertTenantAdmin(context.Background(), actor, "acme"); err != nil {
		t.Fatalf("expected fast path to allow, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("fast path must not hit the store, saw %d calls", repo.calls)
	}
}

func TestAssertTenantAdmin_FallbackAdmin(t *testing.T) {
	repo := &memEmployeeRepo{employees: map[string]*domain.Employee{
		"acme/u1": {TenantID: "acme", UserID: "u1", Role: domain.EmployeeAdmin},
	}}
	g := NewGuard(repo, NewLocalRoleCache(), nil)

	actor := Actor{UserID: "u1", Role: domain.RoleMember}
	if err := g.AssertTenantAdmin(context.Background(), actor, "acme"); err != nil {
		t.Fatalf("expected fallback to allow admin employee, got %v", err)
	}

	// Second call is served from cache
	if err := g.AssertTenantAdmin(context.Background(), actor, "acme"); err != nil {
		t.Fatalf("expected cached check to allow, got %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one store lookup, saw %d", repo.calls)
	}
}

func TestAssertTenantAdmin_NonMember(t *testing.T) {
	repo := &memEmployeeRepo{employees: map[string]*domain.Employee{}}
	g := NewGuard(repo, nil, nil)

	err := g.AssertTenantAdmin(context.Background(), Actor{UserID: "u1", Role: domain.RoleMember}, "acme")
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for non-member, got %v", err)
	}
}

func TestAssertTenantAdmin_NonAdminMember(t *testing.T) {
	repo := &memEmployeeRepo{employees: map[string]*domain.Employee{
		"acme/u1": {TenantID: "acme", UserID: "u1", Role: domain.EmployeeStaff},
	}}
	g := NewGuard(repo, nil, nil)

	err := g.AssertTenantAdmin(context.Background(), Actor{UserID: "u1", Role: domain.RoleMember}, "acme")
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for staff member, got %v", err)
	}
}

func TestAssertTenantAdmin_WrongTenantFastPathRejected(t *testing.T) {
	repo := &memEmployeeRepo{employees: map[string]*domain.Employee{}}
	g := NewGuard(repo, nil, nil)

	// tenant_admin of another tenant must not pass the fast path
	actor := Actor{UserID: "u1", TenantID: "other", Role: domain.RoleTenantAdmin}
	err := g.AssertTenantAdmin(context.Background(), actor, "acme")
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden across tenants, got %v", err)
	}
}

func TestAssertPlatformAdmin(t *testing.T) {
	g := NewGuard(&memEmployeeRepo{}, nil, nil)

	if err := g.AssertPlatformAdmin(Actor{UserID: "a1", Role: domain.RolePlatformAdmin}); err != nil {
		t.Fatalf("expected platform admin to pass, got %v", err)
	}

	err := g.AssertPlatformAdmin(Actor{UserID: "u1", Role: domain.RoleTenantAdmin})
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("tenant admin must not hold platform capability, got %v", err)
	}

	err = g.AssertPlatformAdmin(Actor{})
	if !domain.IsKind(err, domain.KindUnauthorized) {
		t.Fatalf("anonymous caller must be unauthorized, got %v", err)
	}

	var de *domain.Error
	if !errors.As(err, &de) || de.HTTPStatus() != 401 {
		t.Fatalf("expected 401 mapping, got %v", err)
	}
}
