package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/security"
	"github.com/yourorg/tenantplane/internal/security/middleware"
	"github.com/yourorg/tenantplane/internal/service"
)

// AcceptHandler serves the public invitee side: checking a token from an
// invite link and redeeming it. Both routes work without a session; a
// presented session is used as the accepting identity.
type AcceptHandler struct {
	invitations *service.InvitationService
	logger      *slog.Logger
}

func NewAcceptHandler(invitations *service.InvitationService, logger *slog.Logger) *AcceptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AcceptHandler{invitations: invitations, logger: logger}
}

// Validate handles GET /api/invitations/validate?token=...
func (h *AcceptHandler) Validate(w http.ResponseWriter, r *http.Request) {
	plaintext := r.URL.Query().Get("token")
	if plaintext == "" {
		writeError(w, h.logger, r, domain.NewValidation("token query parameter is required"))
		return
	}

	check, err := h.invitations.Validate(r.Context(), plaintext)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// Accept handles POST /api/invitations/accept
func (h *AcceptHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req service.AcceptInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var actor *security.Actor
	if a, ok := middleware.ActorFromContext(r.Context()); ok {
		actor = &a
	}

	outcome, err := h.invitations.Accept(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
