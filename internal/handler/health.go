package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	redisinfra "github.com/yourorg/tenantplane/internal/infrastructure/redis"
)

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	db     *sql.DB
	redis  *redisinfra.Client
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// deployment runs without a cache.
func NewHealthHandler(db *sql.DB, redis *redisinfra.Client, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, redis: redis, logger: logger}
}

// Health handles GET /healthz. Returns 200 if the server is running.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. The database is required; Redis is reported
// but optional, since the role cache degrades to in-process memory.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	dbOK := false
	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
	} else {
		checks["database"] = "ok"
		dbOK = true
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "error: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status, code := "ready", http.StatusOK
	if !dbOK {
		status, code = "not_ready", http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", slog.String("database", checks["database"]))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
}
