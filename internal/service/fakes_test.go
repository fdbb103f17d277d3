package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/authprovider"
)

// In-memory fakes for the orchestrator tests. They enforce the same
// conditional-update semantics as the Postgres stores so the services are
// exercised against realistic conflict and not-found behavior.

type memStores struct {
	mu        sync.Mutex
	tenants   map[string]*domain.Tenant
	orgs      map[string]*domain.Organization
	modLog    map[string][]domain.ModerationEntry
	users     map[string]*domain.User
	employees map[string]*domain.Employee
	invs      map[string]*domain.Invitation

	seq int

	createTenantErr error
	acceptErr       error
}

func newMemStores() *memStores {
	return &memStores{
		tenants:   make(map[string]*domain.Tenant),
		orgs:      make(map[string]*domain.Organization),
		modLog:    make(map[string][]domain.ModerationEntry),
		users:     make(map[string]*domain.User),
		employees: make(map[string]*domain.Employee),
		invs:      make(map[string]*domain.Invitation),
	}
}

func (m *memStores) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func employeeKey(tenantID, userID string) string { return tenantID + "/" + userID }

// --- TenantRepository ---

type memTenantRepo struct{ s *memStores }

func (r *memTenantRepo) Create(_ context.Context, tenant *domain.Tenant, org *domain.Organization, owner *domain.OwnerBootstrap) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createTenantErr != nil {
		return r.s.createTenantErr
	}
	if _, ok := r.s.tenants[tenant.ID]; ok {
		return domain.NewConflict("tenant id already taken")
	}
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	r.s.tenants[tenant.ID] = tenant
	org.TenantID = tenant.ID
	r.s.orgs[tenant.ID] = org
	if owner != nil {
		user, ok := r.s.users[owner.UserID]
		if !ok {
			return domain.NewNotFound("owner user not found")
		}
		if user.TenantID != nil {
			return domain.NewConflict("owner already belongs to a tenant")
		}
		user.TenantID = &tenant.ID
		user.Role = domain.UserRoleFor(owner.Role)
		r.s.employees[employeeKey(tenant.ID, owner.UserID)] = &domain.Employee{
			ID:       r.s.nextID("emp"),
			TenantID: tenant.ID,
			UserID:   owner.UserID,
			Role:     owner.Role,
			Status:   domain.EmployeeActive,
			JoinedAt: time.Now(),
		}
	}
	return nil
}

func (r *memTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok || t.Deleted {
		return nil, domain.NewNotFound("tenant not found")
	}
	return t, nil
}

func (r *memTenantRepo) GetOrganization(_ context.Context, tenantID string) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[tenantID]
	if !ok {
		return nil, domain.NewNotFound("organization not found")
	}
	return o, nil
}

func (r *memTenantRepo) List(_ context.Context, filter domain.TenantFilter) ([]*domain.Tenant, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Tenant
	for _, t := range r.s.tenants {
		if t.Deleted {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r *memTenantRepo) Transition(_ context.Context, id string, from []domain.TenantStatus, to domain.TenantStatus, by, reason string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok || t.Deleted {
		return nil, domain.NewNotFound("tenant not found")
	}
	allowed := false
	for _, f := range from {
		if t.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return nil, domain.NewConflict(fmt.Sprintf("tenant is %s and cannot transition to %s", t.Status, to))
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	r.s.modLog[id] = append(r.s.modLog[id], domain.ModerationEntry{
		Action: to, By: by, Reason: reason, At: time.Now(),
	})
	return t, nil
}

func (r *memTenantRepo) ModerationLog(_ context.Context, id string) ([]domain.ModerationEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.modLog[id], nil
}

func (r *memTenantRepo) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok || t.Deleted {
		return domain.NewNotFound("tenant not found")
	}
	now := time.Now()
	t.Deleted = true
	t.DeletedAt = &now
	return nil
}

func (r *memTenantRepo) Recover(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok || !t.Deleted {
		return domain.NewNotFound("tenant not found")
	}
	t.Deleted = false
	t.DeletedAt = nil
	return nil
}

func (r *memTenantRepo) HardDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[id]; !ok {
		return domain.NewNotFound("tenant not found")
	}
	delete(r.s.tenants, id)
	delete(r.s.orgs, id)
	delete(r.s.modLog, id)
	return nil
}

// --- UserRepository / EmployeeRepository ---

type memUserRepo struct{ s *memStores }

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return domain.NewConflict("email already registered")
		}
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NewNotFound("user not found")
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	norm := domain.NormalizeEmail(email)
	for _, u := range r.s.users {
		if domain.NormalizeEmail(u.Email) == norm {
			return u, nil
		}
	}
	return nil, domain.NewNotFound("user not found")
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	return nil
}

type memEmployeeRepo struct{ s *memStores }

func (r *memEmployeeRepo) Get(_ context.Context, tenantID, userID string) (*domain.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeKey(tenantID, userID)]
	if !ok {
		return nil, domain.NewNotFound("employee not found")
	}
	return e, nil
}

func (r *memEmployeeRepo) ListByTenant(_ context.Context, tenantID string) ([]*domain.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Employee
	for _, e := range r.s.employees {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- authprovider.Provider ---

type memProvider struct {
	s       *memStores
	deleted []string
}

func (p *memProvider) SignUpWithPassword(ctx context.Context, email, password, name string) (string, error) {
	addr := domain.NormalizeEmail(email)
	id := p.s.nextID("user")
	err := (&memUserRepo{s: p.s}).Create(ctx, &domain.User{
		ID:       id,
		Email:    addr,
		Name:     name,
		Role:     domain.RoleMember,
		IsActive: true,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *memProvider) VerifySession(context.Context, string) (*authprovider.Identity, error) {
	return nil, nil
}

func (p *memProvider) DeleteUser(ctx context.Context, userID string) error {
	p.deleted = append(p.deleted, userID)
	return (&memUserRepo{s: p.s}).Delete(ctx, userID)
}

// --- InvitationRepository ---

type memInvitationRepo struct {
	s   *memStores
	now func() time.Time
}

func (r *memInvitationRepo) Upsert(_ context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invs {
		if existing.TenantID == inv.TenantID && existing.Email == inv.Email {
			if existing.Status == domain.InvitationAccepted {
				return domain.NewConflict("invitation already accepted")
			}
			inv.ID = existing.ID
			inv.CreatedAt = existing.CreatedAt
			break
		}
	}
	inv.Status = domain.InvitationPending
	inv.AcceptedAt = nil
	inv.UpdatedAt = time.Now()
	cp := *inv
	r.s.invs[inv.ID] = &cp
	return nil
}

func (r *memInvitationRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invs[id]
	if !ok || inv.TenantID != tenantID {
		return nil, domain.NewNotFound("invitation not found")
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invs {
		if inv.TokenHash == tokenHash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.NewNotFound("invitation not found")
}

func (r *memInvitationRepo) List(_ context.Context, tenantID string, filter domain.InvitationFilter) ([]*domain.Invitation, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Invitation
	for _, inv := range r.s.invs {
		if inv.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && inv.EffectiveStatus(r.now()) != *filter.Status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memInvitationRepo) conditionalUpdate(tenantID, id, verb string, apply func(*domain.Invitation)) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invs[id]
	if !ok || inv.TenantID != tenantID {
		return nil, domain.NewNotFound("invitation not found")
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.NewConflict(fmt.Sprintf("invitation is %s and cannot be %s", inv.Status, verb))
	}
	apply(inv)
	inv.UpdatedAt = time.Now()
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) Revoke(_ context.Context, tenantID, id string) (*domain.Invitation, error) {
	return r.conditionalUpdate(tenantID, id, "revoked", func(inv *domain.Invitation) {
		inv.Status = domain.InvitationRevoked
	})
}

func (r *memInvitationRepo) UpdateRole(_ context.Context, tenantID, id string, role domain.EmployeeRole) (*domain.Invitation, error) {
	return r.conditionalUpdate(tenantID, id, "updated", func(inv *domain.Invitation) {
		inv.Role = role
	})
}

func (r *memInvitationRepo) RotateToken(_ context.Context, tenantID, id, tokenHash string, expiresAt time.Time) (*domain.Invitation, error) {
	return r.conditionalUpdate(tenantID, id, "resent", func(inv *domain.Invitation) {
		inv.TokenHash = tokenHash
		inv.ExpiresAt = expiresAt
	})
}

func (r *memInvitationRepo) Accept(_ context.Context, invitationID, userID string) (*domain.AcceptResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.acceptErr != nil {
		return nil, r.s.acceptErr
	}
	inv, ok := r.s.invs[invitationID]
	if !ok {
		return nil, domain.NewNotFound("invitation not found")
	}
	now := r.now()
	if eff := inv.EffectiveStatus(now); eff != domain.InvitationPending {
		return nil, domain.NewConflict(fmt.Sprintf("invitation is %s and cannot be accepted", eff))
	}
	inv.Status = domain.InvitationAccepted
	inv.AcceptedAt = &now

	key := employeeKey(inv.TenantID, userID)
	emp, ok := r.s.employees[key]
	if !ok {
		emp = &domain.Employee{
			ID:       r.s.nextID("emp"),
			TenantID: inv.TenantID,
			UserID:   userID,
			Role:     inv.Role,
			Status:   domain.EmployeeActive,
			JoinedAt: now,
		}
		r.s.employees[key] = emp
	}

	if user, ok := r.s.users[userID]; ok {
		user.TenantID = &inv.TenantID
		user.Role = domain.UserRoleFor(inv.Role)
	}

	invCp, empCp := *inv, *emp
	return &domain.AcceptResult{Invitation: &invCp, Employee: &empCp}, nil
}
