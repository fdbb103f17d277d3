// Package authprovider defines the credential-identity collaborator consumed
// by the lifecycle orchestrator, plus a local implementation. The orchestrator
// only ever sees the Provider interface; swapping in a hosted IdP is a wiring
// change in cmd/server.
package authprovider

import "context"

// Identity is an authenticated credential identity
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Provider is the external auth collaborator. It guarantees email uniqueness
// at its own layer; duplicate-email failures surface as conflicts.
type Provider interface {
	// SignUpWithPassword creates a new credential identity and returns its
	// user id.
	SignUpWithPassword(ctx context.Context, email, password, name string) (string, error)
	// VerifySession resolves a bearer session token into an identity, or
	// nil when the token is absent or invalid.
	VerifySession(ctx context.Context, bearerToken string) (*Identity, error)
	// DeleteUser removes an identity. Used only for best-effort compensating
	// cleanup after a failed registration transaction.
	DeleteUser(ctx context.Context, userID string) error
}
