// Package email is the notification collaborator. Sends are always
// best-effort and fire-and-forget relative to the transactional outcome: a
// committed use-case reports success to the caller even when its
// notification never leaves the building.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/tenantplane/internal/observability/metrics"
	"github.com/yourorg/tenantplane/internal/reliability/retry"
)

// Kind selects the message template
type Kind string

const (
	KindInvitation     Kind = "invitation"
	KindTenantReceived Kind = "tenant_received"
	KindTenantApproved Kind = "tenant_approved"
	KindTenantRejected Kind = "tenant_rejected"
)

// Sender delivers one message. Implementations own templating.
type Sender interface {
	Send(ctx context.Context, to string, kind Kind, data map[string]string) error
}

// LogSender is the development fallback used when no mail provider is
// configured; it records the send and drops the message.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to string, kind Kind, _ map[string]string) error {
	s.logger.Info("email suppressed (no provider configured)",
		slog.String("to", to),
		slog.String("kind", string(kind)),
	)
	return nil
}

// dispatchTimeout bounds one delivery attempt chain
const dispatchTimeout = 30 * time.Second

// Dispatcher sends notifications asynchronously with retries. Failures are
// logged and never propagated to the calling use-case.
type Dispatcher struct {
	sender Sender
	retry  *retry.Config
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, retry: retry.DefaultConfig(), logger: logger}
}

// Dispatch fires the send on its own goroutine. The caller's context is
// deliberately not used: the notification must outlive the request that
// triggered it.
func (d *Dispatcher) Dispatch(to string, kind Kind, data map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		_, err := retry.Do(ctx, d.retry, d.logger, fmt.Sprintf("email %s", kind),
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, d.sender.Send(ctx, to, kind, data)
			})
		if err != nil {
			metrics.ObserveEmailDelivery(string(kind), "error")
			d.logger.Error("notification delivery failed",
				slog.String("to", to),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			return
		}
		metrics.ObserveEmailDelivery(string(kind), "ok")
	}()
}
