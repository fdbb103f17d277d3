package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/security"
	"github.com/yourorg/tenantplane/internal/security/middleware"
	"github.com/yourorg/tenantplane/internal/service"
)

// TenantHandler exposes tenant registration, lookup, and the moderation
// lifecycle over HTTP
type TenantHandler struct {
	tenants *service.TenantService
	logger  *slog.Logger
}

func NewTenantHandler(tenants *service.TenantService, logger *slog.Logger) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantHandler{tenants: tenants, logger: logger}
}

// Register handles POST /api/tenants. Public: this is how a tenant comes
// to exist.
func (h *TenantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	result, err := h.tenants.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /api/tenants with status, search, page, and limit
// query parameters
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := requestActor(r)
	filter := domain.TenantFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 50),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.TenantStatus(s)
		filter.Status = &status
	}

	tenants, total, err := h.tenants.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenants": tenants,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// Get handles GET /api/tenants/{id}
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.Get(r.Context(), requestActor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// GetOrganization handles GET /api/tenants/{id}/organization
func (h *TenantHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.tenants.GetOrganization(r.Context(), requestActor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// ModerationLog handles GET /api/tenants/{id}/moderation-log
func (h *TenantHandler) ModerationLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tenants.ModerationLog(r.Context(), requestActor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ModerationRequest carries the moderator's reason for a transition
type ModerationRequest struct {
	Reason string `json:"reason"`
}

// Approve handles POST /api/tenants/{id}/approve
func (h *TenantHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.Approve)
}

// Reject handles POST /api/tenants/{id}/reject
func (h *TenantHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.Reject)
}

// Suspend handles POST /api/tenants/{id}/suspend
func (h *TenantHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.Suspend)
}

// Reinstate handles POST /api/tenants/{id}/reinstate
func (h *TenantHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tenants.Reinstate)
}

// SoftDelete handles DELETE /api/tenants/{id}
func (h *TenantHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.SoftDelete(r.Context(), requestActor(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Recover handles POST /api/tenants/{id}/recover
func (h *TenantHandler) Recover(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.Recover(r.Context(), requestActor(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recovered"})
}

// HardDelete handles DELETE /api/tenants/{id}/purge
func (h *TenantHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.HardDelete(r.Context(), requestActor(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (h *TenantHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor security.Actor, id, reason string) (*domain.Tenant, error),
) {
	var req ModerationRequest
	// the body is optional for transitions whose reason is optional
	_ = decodeJSON(r, &req)

	tenant, err := op(r.Context(), requestActor(r), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// requestActor returns the session actor, anonymous when absent. Services
// treat an empty actor as unauthenticated.
func requestActor(r *http.Request) security.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
