package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/service"
)

// InvitationHandler exposes the tenant-admin side of invitations: issuing,
// listing, resending, revoking, and role changes
type InvitationHandler struct {
	invitations *service.InvitationService
	logger      *slog.Logger
}

func NewInvitationHandler(invitations *service.InvitationService, logger *slog.Logger) *InvitationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationHandler{invitations: invitations, logger: logger}
}

// Create handles POST /api/tenants/{id}/invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInvitationInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	issued, err := h.invitations.Create(r.Context(), requestActor(r), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issued)
}

// List handles GET /api/tenants/{id}/invitations with status, search,
// page, and limit query parameters. The status filter accepts EXPIRED.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.InvitationFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 50),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.InvitationStatus(s)
		filter.Status = &status
	}

	invs, total, err := h.invitations.List(r.Context(), requestActor(r), r.PathValue("id"), filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invitations": invs,
		"total":       total,
		"page":        filter.Page,
		"limit":       filter.Limit,
	})
}

// Resend handles POST /api/tenants/{id}/invitations/{invitationId}/resend
func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	issued, err := h.invitations.Resend(r.Context(), requestActor(r), r.PathValue("id"), r.PathValue("invitationId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

// Revoke handles DELETE /api/tenants/{id}/invitations/{invitationId}
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.Revoke(r.Context(), requestActor(r), r.PathValue("id"), r.PathValue("invitationId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// UpdateRoleRequest changes the role a pending invitation grants
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PATCH /api/tenants/{id}/invitations/{invitationId}
func (h *InvitationHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	inv, err := h.invitations.UpdateRole(r.Context(), requestActor(r), r.PathValue("id"), r.PathValue("invitationId"), req.Role)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
