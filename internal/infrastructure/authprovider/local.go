package authprovider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/tenantplane/internal/domain"
	"github.com/yourorg/tenantplane/internal/security/auth"
)

// LocalProvider implements Provider against the platform's own user table
// with bcrypt password hashes and HS256 session tokens. It exists so the
// control plane runs end to end without a hosted identity provider.
type LocalProvider struct {
	users  domain.UserRepository
	tokens *auth.TokenManager
	logger *slog.Logger
}

func NewLocalProvider(users domain.UserRepository, tokens *auth.TokenManager, logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalProvider{users: users, tokens: tokens, logger: logger}
}

// SignUpWithPassword creates a new user with a hashed password. The unique
// email constraint enforces identity uniqueness; violations surface as
// conflicts.
func (p *LocalProvider) SignUpWithPassword(ctx context.Context, email, password, name string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || name == "" {
		return "", domain.NewValidation("email and name are required")
	}
	if len(password) < 8 {
		return "", domain.NewValidation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.NewDependency("failed to hash password", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
		IsActive:     true,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return "", err
	}

	p.logger.Info("user signed up", slog.String("user_id", user.ID))
	return user.ID, nil
}

// VerifySession resolves a session token. An empty or invalid token yields
// (nil, nil); only infrastructure failures return an error.
func (p *LocalProvider) VerifySession(ctx context.Context, bearerToken string) (*Identity, error) {
	if bearerToken == "" {
		return nil, nil
	}
	claims, err := p.tokens.ValidateToken(bearerToken)
	if err != nil {
		return nil, nil
	}
	user, err := p.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// DeleteUser removes the identity row; part of compensating cleanup
func (p *LocalProvider) DeleteUser(ctx context.Context, userID string) error {
	return p.users.Delete(ctx, userID)
}

// PasswordLogin authenticates email/password and issues a session token.
// Not part of the Provider interface; the login handler uses it directly.
func (p *LocalProvider) PasswordLogin(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, domain.NewValidation("email and password are required")
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			p.logger.Info("login attempt with unknown email")
			return "", nil, domain.NewUnauthorized("invalid credentials")
		}
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, domain.NewUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
		return "", nil, domain.NewUnauthorized("invalid credentials")
	}

	tenantID := ""
	if user.TenantID != nil {
		tenantID = *user.TenantID
	}
	token, err := p.tokens.GenerateToken(user.ID, user.Email, tenantID, string(user.Role))
	if err != nil {
		return "", nil, domain.NewDependency("failed to sign session token", err)
	}

	p.logger.Info("user logged in", slog.String("user_id", user.ID))
	return token, user, nil
}
