package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/yourorg/tenantplane/internal/domain"
)

// PostgresUserRepository implements domain.UserRepository and
// domain.EmployeeRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

const userColumns = `id, email, name, password_hash, tenant_id, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	u := &domain.User{}
	var tenantID sql.NullString
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &tenantID, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if tenantID.Valid {
		u.TenantID = &tenantID.String
	}
	return u, nil
}

// Create inserts a new user; the email column carries a unique constraint
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, tenant_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Name, user.PasswordHash, nullable(user.TenantID), user.Role, user.IsActive).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflict("email already registered")
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return domain.NewDependency("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by id
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("user not found")
		}
		return nil, domain.NewDependency("failed to get user", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by normalized email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("user not found")
		}
		return nil, domain.NewDependency("failed to get user by email", err)
	}
	return u, nil
}

// Delete removes a user row. Tenants keep only weak references, so nothing
// cascades; moderation log entries keep the raw user id.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return domain.NewDependency("failed to delete user", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.NewDependency("failed to check rows affected", err)
	}
	if rows == 0 {
		return domain.NewNotFound("user not found")
	}
	return nil
}

// Get retrieves the membership edge for (tenant, user)
func (r *PostgresUserRepository) Get(ctx context.Context, tenantID, userID string) (*domain.Employee, error) {
	emp := &domain.Employee{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, role, status, joined_at
		FROM employees WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(
		&emp.ID, &emp.TenantID, &emp.UserID, &emp.Role, &emp.Status, &emp.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("employee not found")
		}
		return nil, domain.NewDependency("failed to get employee", err)
	}
	return emp, nil
}

// ListByTenant returns all memberships of a tenant
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Employee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, role, status, joined_at
		FROM employees WHERE tenant_id = $1
		ORDER BY joined_at ASC
	`, tenantID)
	if err != nil {
		return nil, domain.NewDependency("failed to list employees", err)
	}
	defer rows.Close()

	var out []*domain.Employee
	for rows.Next() {
		emp := &domain.Employee{}
		if err := rows.Scan(&emp.ID, &emp.TenantID, &emp.UserID, &emp.Role, &emp.Status, &emp.JoinedAt); err != nil {
			return nil, domain.NewDependency("failed to scan employee", err)
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}
