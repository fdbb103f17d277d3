package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/tenantplane/internal/domain"
)

// envelope is the uniform response body: {success, data} on the happy path,
// {success, error, message} on failure
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError maps a domain error kind to a status code. Dependency errors
// keep their cause out of the response body; the log line carries it.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	de := domain.AsError(err)
	status := de.HTTPStatus()

	msg := de.Message
	if status >= 500 {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: string(de.Kind), Message: msg})
}

// decodeJSON parses the request body into dst, translating malformed input
// into a validation error
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidation("invalid request body")
	}
	return nil
}
