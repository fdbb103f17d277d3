package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/tenantplane/internal/handler"
	"github.com/yourorg/tenantplane/internal/infrastructure/authprovider"
	"github.com/yourorg/tenantplane/internal/infrastructure/email"
	"github.com/yourorg/tenantplane/internal/infrastructure/logger"
	"github.com/yourorg/tenantplane/internal/infrastructure/redis"
	"github.com/yourorg/tenantplane/internal/observability/metrics"
	"github.com/yourorg/tenantplane/internal/observability/tracing"
	"github.com/yourorg/tenantplane/internal/repository"
	"github.com/yourorg/tenantplane/internal/security"
	"github.com/yourorg/tenantplane/internal/security/audit"
	"github.com/yourorg/tenantplane/internal/security/auth"
	"github.com/yourorg/tenantplane/internal/security/middleware"
	"github.com/yourorg/tenantplane/internal/security/ratelimit"
	"github.com/yourorg/tenantplane/internal/service"
	"github.com/yourorg/tenantplane/pkg/config"
	"github.com/yourorg/tenantplane/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting tenantplane server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "tenantplane", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Database pool
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 5. Role cache: Redis when configured, in-process otherwise
	var roleCache security.RoleCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		roleCache = security.NewRedisRoleCache(redisClient)
	} else {
		log.Info("REDIS_URL not set, using in-process role cache")
		roleCache = security.NewLocalRoleCache()
	}

	// 6. Repositories
	tenantRepo := repository.NewPostgresTenantRepository(db, log)
	invitationRepo := repository.NewPostgresInvitationRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)

	// 7. Collaborators
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "tenantplane")
	provider := authprovider.NewLocalProvider(userRepo, tokenManager, log)

	var sender email.Sender
	if cfg.SendGridAPIKey != "" {
		sender = email.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFromAddr, cfg.EmailFromName, log)
	} else {
		log.Info("SENDGRID_API_KEY not set, notifications will be logged only")
		sender = email.NewLogSender(log)
	}
	mailer := email.NewDispatcher(sender, log)

	guard := security.NewGuard(userRepo, roleCache, log)

	// 8. Services
	tenantService := service.NewTenantService(tenantRepo, provider, guard, mailer, log)
	invitationService := service.NewInvitationService(
		invitationRepo, tenantRepo, userRepo, userRepo, provider, guard, mailer, cfg.InviteBaseURL, log)

	// 9. Handlers
	authHandler := handler.NewAuthHandler(provider, log)
	tenantHandler := handler.NewTenantHandler(tenantService, log)
	invitationHandler := handler.NewInvitationHandler(invitationService, log)
	acceptHandler := handler.NewAcceptHandler(invitationService, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 10. Routes
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.HandleFunc("POST /api/tenants", tenantHandler.Register)
	mux.HandleFunc("GET /api/tenants", tenantHandler.List)
	mux.HandleFunc("GET /api/tenants/{id}", tenantHandler.Get)
	mux.HandleFunc("GET /api/tenants/{id}/organization", tenantHandler.GetOrganization)
	mux.HandleFunc("GET /api/tenants/{id}/moderation-log", tenantHandler.ModerationLog)
	mux.HandleFunc("POST /api/tenants/{id}/approve", tenantHandler.Approve)
	mux.HandleFunc("POST /api/tenants/{id}/reject", tenantHandler.Reject)
	mux.HandleFunc("POST /api/tenants/{id}/suspend", tenantHandler.Suspend)
	mux.HandleFunc("POST /api/tenants/{id}/reinstate", tenantHandler.Reinstate)
	mux.HandleFunc("POST /api/tenants/{id}/recover", tenantHandler.Recover)
	mux.HandleFunc("DELETE /api/tenants/{id}", tenantHandler.SoftDelete)
	mux.HandleFunc("DELETE /api/tenants/{id}/purge", tenantHandler.HardDelete)

	mux.HandleFunc("POST /api/tenants/{id}/invitations", invitationHandler.Create)
	mux.HandleFunc("GET /api/tenants/{id}/invitations", invitationHandler.List)
	mux.HandleFunc("POST /api/tenants/{id}/invitations/{invitationId}/resend", invitationHandler.Resend)
	mux.HandleFunc("PATCH /api/tenants/{id}/invitations/{invitationId}", invitationHandler.UpdateRole)
	mux.HandleFunc("DELETE /api/tenants/{id}/invitations/{invitationId}", invitationHandler.Revoke)

	mux.HandleFunc("GET /api/invitations/validate", acceptHandler.Validate)
	mux.HandleFunc("POST /api/invitations/accept", acceptHandler.Accept)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS honoring configured origins
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// 11. Security and observability
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// Chain: request ID -> tracing -> metrics -> session -> rate limit -> audit -> CORS/mux
	rootHandler := withRequestID(
		otelhttp.NewHandler(
			metrics.HTTPMetricsMiddleware(
				middleware.SessionMiddleware(tokenManager, log)(
					middleware.RateLimitMiddleware(rateLimiter, log)(
						middleware.AuditMiddleware(auditLogger)(corsHandler),
					),
				),
			),
			"tenantplane",
		),
		log,
	)

	// 12. HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
