package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/tenantplane/internal/domain"
)

// PostgresInvitationRepository implements domain.InvitationRepository using
// PostgreSQL. The (tenant_id, email) unique constraint is the backbone of the
// one-invitation-per-email rule; every tenant-scoped mutation filters on
// tenant_id in the predicate so guessed ids cannot cross tenants.
type PostgresInvitationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresInvitationRepository creates a new invitation repository
func NewPostgresInvitationRepository(db *sql.DB, logger *slog.Logger) *PostgresInvitationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresInvitationRepository{db: db, logger: logger}
}

const invitationColumns = `id, tenant_id, email, role, status, token_hash, expires_at, invited_by, first_name, last_name, accepted_at, created_at, updated_at`

func scanInvitation(row interface{ Scan(...any) error }) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	var invitedBy sql.NullString
	var acceptedAt sql.NullTime
	if err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.Status, &inv.TokenHash,
		&inv.ExpiresAt, &invitedBy, &inv.FirstName, &inv.LastName, &acceptedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if invitedBy.Valid {
		inv.InvitedBy = &invitedBy.String
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return inv, nil
}

// Upsert inserts a new invitation row or reuses the existing (tenant, email)
// row: same id, fresh token hash and expiry, cleared acceptedAt. The guard
// clause on the conflict update keeps ACCEPTED rows immutable; when it
// blocks the update, RETURNING yields no row and we report the conflict.
func (r *PostgresInvitationRepository) Upsert(ctx context.Context, inv *domain.Invitation) error {
	err := scanInto(inv, r.db.QueryRowContext(ctx, `
		INSERT INTO invitations (id, tenant_id, email, role, status, token_hash, expires_at, invited_by, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, email) DO UPDATE SET
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			invited_by = EXCLUDED.invited_by,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			accepted_at = NULL,
			updated_at = NOW()
		WHERE invitations.status <> 'ACCEPTED'
		RETURNING `+invitationColumns+`
	`, inv.ID, inv.TenantID, inv.Email, inv.Role, domain.InvitationPending,
		inv.TokenHash, inv.ExpiresAt, nullable(inv.InvitedBy), inv.FirstName, inv.LastName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewConflict("invitation already accepted")
		}
		if isForeignKeyViolation(err) {
			return domain.NewNotFound("tenant not found")
		}
		return domain.NewDependency("failed to upsert invitation", err)
	}

	r.logger.Info("invitation upserted",
		slog.String("tenant_id", inv.TenantID),
		slog.String("invitation_id", inv.ID),
	)
	return nil
}

func scanInto(inv *domain.Invitation, row interface{ Scan(...any) error }) error {
	scanned, err := scanInvitation(row)
	if err != nil {
		return err
	}
	*inv = *scanned
	return nil
}

// GetByID retrieves an invitation scoped to a tenant
func (r *PostgresInvitationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("invitation not found")
		}
		return nil, domain.NewDependency("failed to get invitation", err)
	}
	return inv, nil
}

// GetByTokenHash looks an invitation up by its stored token digest. The
// query cost does not depend on whether the email exists, so a miss reveals
// nothing to an enumerating caller.
func (r *PostgresInvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE token_hash = $1
	`, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("invitation not found")
		}
		return nil, domain.NewDependency("failed to get invitation", err)
	}
	return inv, nil
}

// List returns a tenant's invitations filtered by effective status. The
// stored status never reads EXPIRED, so that filter value is expressed as
// "stored PENDING with expiry in the past".
func (r *PostgresInvitationRepository) List(ctx context.Context, tenantID string, filter domain.InvitationFilter) ([]*domain.Invitation, int, error) {
	where := `tenant_id = $1`
	args := []any{tenantID}
	idx := 2
	if filter.Status != nil {
		switch *filter.Status {
		case domain.InvitationExpired:
			where += ` AND status = 'PENDING' AND expires_at <= NOW()`
		case domain.InvitationPending:
			where += ` AND status = 'PENDING' AND expires_at > NOW()`
		default:
			where += fmt.Sprintf(" AND status = $%d", idx)
			args = append(args, *filter.Status)
			idx++
		}
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invitations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewDependency("failed to count invitations", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM invitations WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, invitationColumns, where, idx, idx+1), args...)
	if err != nil {
		return nil, 0, domain.NewDependency("failed to list invitations", err)
	}
	defer rows.Close()

	var out []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, 0, domain.NewDependency("failed to scan invitation", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewDependency("failed to list invitations", err)
	}
	return out, total, nil
}

// Revoke flips a stored-PENDING invitation to REVOKED
func (r *PostgresInvitationRepository) Revoke(ctx context.Context, tenantID, id string) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		UPDATE invitations SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'PENDING'
		RETURNING `+invitationColumns+`
	`, domain.InvitationRevoked, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conditionalUpdateFailure(ctx, tenantID, id, "revoked")
		}
		return nil, domain.NewDependency("failed to revoke invitation", err)
	}
	return inv, nil
}

// UpdateRole changes the role a pending invitee will receive
func (r *PostgresInvitationRepository) UpdateRole(ctx context.Context, tenantID, id string, role domain.EmployeeRole) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		UPDATE invitations SET role = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'PENDING'
		RETURNING `+invitationColumns+`
	`, role, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conditionalUpdateFailure(ctx, tenantID, id, "updated")
		}
		return nil, domain.NewDependency("failed to update invitation role", err)
	}
	return inv, nil
}

// RotateToken stores a fresh token hash and expiry. Only the latest hash is
// ever stored, so the previously issued token is dead from this point on.
// Valid from stored PENDING only; resend of a revoked or accepted invitation
// is a conflict.
func (r *PostgresInvitationRepository) RotateToken(ctx context.Context, tenantID, id, tokenHash string, expiresAt time.Time) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		UPDATE invitations SET token_hash = $1, expires_at = $2, accepted_at = NULL, updated_at = NOW()
		WHERE tenant_id = $3 AND id = $4 AND status = 'PENDING'
		RETURNING `+invitationColumns+`
	`, tokenHash, expiresAt, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conditionalUpdateFailure(ctx, tenantID, id, "resent")
		}
		return nil, domain.NewDependency("failed to rotate invitation token", err)
	}

	r.logger.Info("invitation token rotated",
		slog.String("tenant_id", tenantID),
		slog.String("invitation_id", id),
	)
	return inv, nil
}

func (r *PostgresInvitationRepository) conditionalUpdateFailure(ctx context.Context, tenantID, id, verb string) error {
	var status domain.InvitationStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM invitations WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("invitation not found")
		}
		return domain.NewDependency("failed to check invitation status", err)
	}
	return domain.NewConflict(fmt.Sprintf("invitation is %s and cannot be %s", status, verb))
}

// Accept performs the single-winner acceptance transaction:
//
//  1. flip the invitation PENDING -> ACCEPTED with a conditional UPDATE
//     (the row lock serializes racing accepts; the loser matches zero rows),
//  2. insert the employee membership with ON CONFLICT DO NOTHING so a
//     retried accept does not trip the unique (tenant_id, user_id) pair,
//  3. bind the user to the tenant and promote their role.
//
// All three commit together or not at all.
func (r *PostgresInvitationRepository) Accept(ctx context.Context, invitationID, userID string) (*domain.AcceptResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewDependency("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inv, err := scanInvitation(tx.QueryRowContext(ctx, `
		UPDATE invitations SET status = $1, accepted_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING' AND expires_at > $2
		RETURNING `+invitationColumns+`
	`, domain.InvitationAccepted, now, invitationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.acceptFailure(ctx, invitationID, now)
		}
		return nil, domain.NewDependency("failed to accept invitation", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (tenant_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`, inv.TenantID, userID, inv.Role, domain.EmployeeActive)
	if err != nil {
		return nil, domain.NewDependency("failed to create employee", err)
	}

	emp := &domain.Employee{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, role, status, joined_at
		FROM employees WHERE tenant_id = $1 AND user_id = $2
	`, inv.TenantID, userID).Scan(
		&emp.ID, &emp.TenantID, &emp.UserID, &emp.Role, &emp.Status, &emp.JoinedAt,
	)
	if err != nil {
		return nil, domain.NewDependency("failed to load employee", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET tenant_id = $1, role = $2, updated_at = NOW() WHERE id = $3
	`, inv.TenantID, domain.UserRoleFor(inv.Role), userID)
	if err != nil {
		return nil, domain.NewDependency("failed to promote user", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewDependency("failed to commit acceptance", err)
	}

	r.logger.Info("invitation accepted",
		slog.String("tenant_id", inv.TenantID),
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", userID),
	)
	return &domain.AcceptResult{Invitation: inv, Employee: emp}, nil
}

// acceptFailure names the effective status that blocked acceptance so the
// client can tell an expired link from a revoked or already-used one. A
// racing accept that lost lands here too and sees ACCEPTED, same as any
// late attempt.
func (r *PostgresInvitationRepository) acceptFailure(ctx context.Context, invitationID string, now time.Time) error {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE id = $1
	`, invitationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("invitation not found")
		}
		return domain.NewDependency("failed to check invitation status", err)
	}
	return domain.NewConflict(fmt.Sprintf("invitation is %s", inv.EffectiveStatus(now)))
}
