package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/security"
	"github.com/yourorg/tenantplane/internal/security/audit"
	"github.com/yourorg/tenantplane/internal/security/auth"
	"github.com/yourorg/tenantplane/internal/security/ratelimit"
)

type ActorContextKey struct{}

// isPublic lists the endpoints reachable without a session: probes, tenant
// self-registration, login, and the invitation validate/accept flow (the
// invitee typically has no account yet).
func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/api/auth/login":
		return true
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/tenants" {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/invitations/")
}

// SessionMiddleware resolves the bearer session into an Actor on the request
// context. Public endpoints pass through without a token, but a presented
// token is still resolved so an authenticated accept can reuse the session
// identity.
func SessionMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			public := isPublic(r)

			if authHeader == "" {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, `{"success":false,"error":"unauthorized","message":"missing authorization"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err == nil {
				var claims *auth.Claims
				claims, err = tm.ValidateToken(tokenString)
				if err == nil {
					actor := security.Actor{
						UserID:   claims.UserID,
						Email:    claims.Email,
						TenantID: claims.TenantID,
						Role:     domain.UserRole(claims.Role),
					}
					ctx := context.WithValue(r.Context(), ActorContextKey{}, actor)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			if public {
				// A bad token on a public endpoint degrades to anonymous
				next.ServeHTTP(w, r)
				return
			}
			log.Info("rejected invalid session token", slog.String("path", r.URL.Path))
			http.Error(w, `{"success":false,"error":"unauthorized","message":"invalid session token"}`, http.StatusUnauthorized)
		})
	}
}

// RateLimitMiddleware throttles per caller: tenant for tenant-bound
// sessions, user otherwise, remote address for anonymous traffic
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if actor, ok := ActorFromContext(r.Context()); ok {
				if actor.TenantID != "" {
					key = "tenant:" + actor.TenantID
				} else {
					key = "user:" + actor.UserID
				}
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				http.Error(w, `{"success":false,"error":"rate_limited","message":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records mutating lifecycle operations before they execute
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/") {
				userID, tenantID := "", ""
				if actor, ok := ActorFromContext(r.Context()); ok {
					userID, tenantID = actor.UserID, actor.TenantID
				}
				auditLog.LogRequest(r.Context(), tenantID, userID, r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(ctx context.Context) (security.Actor, bool) {
	if a, ok := ctx.Value(ActorContextKey{}).(security.Actor); ok {
		return a, true
	}
	return security.Actor{}, false
}
