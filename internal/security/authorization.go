package security

import (
	"context"
	"log/slog"

	"github.com/yourorg/tenantplane/internal/domain"
)

// Actor is the authenticated caller as resolved from the session
type Actor struct {
	UserID   string
	Email    string
	TenantID string
	Role     domain.UserRole
}

// Guard decides whether a caller may act as a tenant administrator or as a
// platform administrator. It runs before every invitation-mutating operation
// and every tenant self-service operation.
type Guard struct {
	employees domain.EmployeeRepository
	cache     RoleCache
	logger    *slog.Logger
}

// NewGuard creates an authorization guard. cache may be nil, in which case
// every fallback check hits the store.
func NewGuard(employees domain.EmployeeRepository, cache RoleCache, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{employees: employees, cache: cache, logger: logger}
}

// AssertTenantAdmin allows the call when the actor administers tenantID.
// Fast path: a session already carrying the tenant-admin role for this
// tenant passes without a store round trip. Fallback: load the membership
// edge and require the admin role on it.
func (g *Guard) AssertTenantAdmin(ctx context.Context, actor Actor, tenantID string) error {
	if actor.UserID == "" {
		return domain.NewUnauthorized("authentication required")
	}
	if actor.Role == domain.RoleTenantAdmin && actor.TenantID == tenantID {
		return nil
	}

	role, ok := g.lookupRole(ctx, tenantID, actor.UserID)
	if !ok {
		emp, err := g.employees.Get(ctx, tenantID, actor.UserID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				g.logger.Warn("tenant access denied",
					slog.String("user_id", actor.UserID),
					slog.String("tenant_id", tenantID),
				)
				return domain.NewForbidden("tenant access required")
			}
			return err
		}
		role = emp.Role
		g.storeRole(ctx, tenantID, actor.UserID, role)
	}

	if role != domain.EmployeeAdmin {
		g.logger.Warn("admin access denied",
			slog.String("user_id", actor.UserID),
			slog.String("tenant_id", tenantID),
			slog.String("role", string(role)),
		)
		return domain.NewForbidden("admin access required")
	}
	return nil
}

// AssertPlatformAdmin requires the platform-administrator capability, which
// is never derivable from tenant membership.
func (g *Guard) AssertPlatformAdmin(actor Actor) error {
	if actor.UserID == "" {
		return domain.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RolePlatformAdmin {
		g.logger.Warn("platform admin access denied",
			slog.String("user_id", actor.UserID),
			slog.String("role", string(actor.Role)),
		)
		return domain.NewForbidden("platform admin access required")
	}
	return nil
}

func (g *Guard) lookupRole(ctx context.Context, tenantID, userID string) (domain.EmployeeRole, bool) {
	if g.cache == nil {
		return "", false
	}
	return g.cache.GetRole(ctx, tenantID, userID)
}

func (g *Guard) storeRole(ctx context.Context, tenantID, userID string, role domain.EmployeeRole) {
	if g.cache != nil {
		g.cache.SetRole(ctx, tenantID, userID, role)
	}
}
