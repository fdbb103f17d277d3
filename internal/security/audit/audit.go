package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit records for lifecycle operations. Audit
// records go to the log stream, not the database; the moderation log is the
// durable trail for status transitions.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, tenantID, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID, _ = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogRequest records an inbound mutating API call before it executes
func (al *Logger) LogRequest(ctx context.Context, tenantID, userID, method, path string) {
	al.LogAction(ctx, tenantID, userID, method, "api", path, "initiated", "")
}

func (al *Logger) LogModeration(ctx context.Context, tenantID, userID, action, status, details string) {
	al.LogAction(ctx, tenantID, userID, action, "tenant", tenantID, status, details)
}

func (al *Logger) LogInvitation(ctx context.Context, tenantID, userID, action, invitationID, status string) {
	al.LogAction(ctx, tenantID, userID, action, "invitation", invitationID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, reason string) {
	al.LogAction(ctx, tenantID, userID, "access_denied", "api", "", "denied", reason)
}
