package security

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/redis"
	"github.com/yourorg/tenantplane/pkg/cache"
)

// roleCacheTTL keeps role lookups cheap without letting revocations linger
const roleCacheTTL = 30 * time.Second

// RoleCache is a short-TTL cache for employee role lookups backing the
// guard's fallback path. Misses are expected; failures are treated as misses.
type RoleCache interface {
	GetRole(ctx context.Context, tenantID, userID string) (domain.EmployeeRole, bool)
	SetRole(ctx context.Context, tenantID, userID string, role domain.EmployeeRole)
}

func roleKey(tenantID, userID string) string {
	return fmt.Sprintf("role:%s:%s", tenantID, userID)
}

// RedisRoleCache backs the guard with Redis, shared across server instances
type RedisRoleCache struct {
	client *redis.Client
}

func NewRedisRoleCache(client *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{client: client}
}

func (c *RedisRoleCache) GetRole(ctx context.Context, tenantID, userID string) (domain.EmployeeRole, bool) {
	val, err := c.client.Get(ctx, roleKey(tenantID, userID))
	if err != nil || val == "" {
		return "", false
	}
	return domain.EmployeeRole(val), true
}

func (c *RedisRoleCache) SetRole(ctx context.Context, tenantID, userID string, role domain.EmployeeRole) {
	_ = c.client.Set(ctx, roleKey(tenantID, userID), string(role), roleCacheTTL)
}

// LocalRoleCache is the in-process fallback used when no Redis is configured
type LocalRoleCache struct {
	cache *cache.Cache
}

func NewLocalRoleCache() *LocalRoleCache {
	return &LocalRoleCache{cache: cache.New()}
}

func (c *LocalRoleCache) GetRole(_ context.Context, tenantID, userID string) (domain.EmployeeRole, bool) {
	v, ok := c.cache.Get(roleKey(tenantID, userID))
	if !ok {
		return "", false
	}
	role, ok := v.(domain.EmployeeRole)
	return role, ok
}

func (c *LocalRoleCache) SetRole(_ context.Context, tenantID, userID string, role domain.EmployeeRole) {
	c.cache.Set(roleKey(tenantID, userID), role, roleCacheTTL)
}
