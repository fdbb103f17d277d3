package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenantplane_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	tenantRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_tenant_registrations_total",
		Help: "Count of tenant registration attempts by result",
	}, []string{"result"})

	tenantTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_tenant_transitions_total",
		Help: "Count of tenant moderation transitions by action and result",
	}, []string{"action", "result"})

	invitationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_invitations_issued_total",
		Help: "Count of invitation tokens issued by kind (create or resend) and result",
	}, []string{"kind", "result"})

	invitationAccepts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_invitation_accepts_total",
		Help: "Count of invitation redemption attempts by result",
	}, []string{"result"})

	emailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenantplane_email_deliveries_total",
		Help: "Count of notification deliveries by kind and result",
	}, []string{"kind", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTenantRegistration records a registration attempt with a result label
func ObserveTenantRegistration(result string) {
	tenantRegistrations.WithLabelValues(result).Inc()
}

// ObserveTenantTransition records a moderation transition attempt
func ObserveTenantTransition(action, result string) {
	tenantTransitions.WithLabelValues(action, result).Inc()
}

// ObserveInvitationIssued records an invitation create or resend
func ObserveInvitationIssued(kind, result string) {
	invitationsIssued.WithLabelValues(kind, result).Inc()
}

// ObserveInvitationAccept records an invitation redemption attempt
func ObserveInvitationAccept(result string) {
	invitationAccepts.WithLabelValues(result).Inc()
}

// ObserveEmailDelivery records the terminal outcome of one notification
func ObserveEmailDelivery(kind, result string) {
	emailDeliveries.WithLabelValues(kind, result).Inc()
}
