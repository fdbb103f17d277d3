package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/infrastructure/authprovider"
)

// AuthHandler exchanges credentials for a session token
type AuthHandler struct {
	provider *authprovider.LocalProvider
	logger   *slog.Logger
}

func NewAuthHandler(provider *authprovider.LocalProvider, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{provider: provider, logger: logger}
}

// LoginRequest carries password credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse returns the session token and the signed-in user
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, h.logger, r, domain.NewValidation("email and password are required"))
		return
	}

	token, user, err := h.provider.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}
