package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/yourorg/tenantplane/internal/domain"
)

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository
func NewPostgresTenantRepository(db *sql.DB, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

const tenantColumns = `id, uuid, status, owner_id, created_by, deleted, deleted_at, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	var ownerID, createdBy sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(
		&t.ID, &t.UUID, &t.Status, &ownerID, &createdBy, &t.Deleted, &deletedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if ownerID.Valid {
		t.OwnerID = &ownerID.String
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.String
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return t, nil
}

// Create inserts the tenant, its organization, and optionally the owner
// bootstrap in one transaction. Partial application would strand an
// organization-less tenant, so any failure rolls back everything.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant, org *domain.Organization, owner *domain.OwnerBootstrap) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewDependency("failed to begin transaction", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tenants (id, uuid, status, owner_id, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, tenant.ID, tenant.UUID, tenant.Status, nullable(tenant.OwnerID), nullable(tenant.CreatedBy)).
		Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflict("tenant id already exists")
		}
		return domain.NewDependency("failed to create tenant", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (tenant_id, name, legal_name, country, contact_email, website)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, tenant.ID, org.Name, org.LegalName, org.Country, org.ContactEmail, org.Website).
		Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return domain.NewDependency("failed to create organization", err)
	}
	org.TenantID = tenant.ID

	if owner != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET tenant_id = $1, role = $2, updated_at = NOW()
			WHERE id = $3 AND tenant_id IS NULL
		`, tenant.ID, domain.UserRoleFor(owner.Role), owner.UserID)
		if err != nil {
			return domain.NewDependency("failed to bind owner", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return domain.NewConflict("owner already belongs to a tenant")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO employees (tenant_id, user_id, role, status)
			VALUES ($1, $2, $3, $4)
		`, tenant.ID, owner.UserID, owner.Role, domain.EmployeeActive)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.NewConflict("owner already belongs to a tenant")
			}
			return domain.NewDependency("failed to create owner employee", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewDependency("failed to commit tenant creation", err)
	}

	r.logger.Info("tenant created",
		slog.String("tenant_id", tenant.ID),
		slog.String("status", string(tenant.Status)),
	)
	return nil
}

// GetByID retrieves a tenant by slug, excluding soft-deleted rows
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND deleted = FALSE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("tenant not found")
		}
		return nil, domain.NewDependency("failed to get tenant", err)
	}
	return t, nil
}

// GetOrganization retrieves the tenant's organization profile
func (r *PostgresTenantRepository) GetOrganization(ctx context.Context, tenantID string) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT o.tenant_id, o.name, o.legal_name, o.country, o.contact_email, o.website, o.created_at, o.updated_at
		FROM organizations o
		JOIN tenants t ON t.id = o.tenant_id
		WHERE o.tenant_id = $1 AND t.deleted = FALSE
	`, tenantID).Scan(
		&o.TenantID, &o.Name, &o.LegalName, &o.Country, &o.ContactEmail, &o.Website, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("tenant not found")
		}
		return nil, domain.NewDependency("failed to get organization", err)
	}
	return o, nil
}

// List returns non-deleted tenants matching the filter, newest first
func (r *PostgresTenantRepository) List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, int, error) {
	where := `deleted = FALSE`
	args := []any{}
	idx := 1
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *filter.Status)
		idx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND id ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewDependency("failed to count tenants", err)
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
		SELECT %s FROM tenants WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, tenantColumns, where, idx, idx+1), args...)
	if err != nil {
		return nil, 0, domain.NewDependency("failed to list tenants", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, domain.NewDependency("failed to scan tenant", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewDependency("failed to list tenants", err)
	}
	return out, total, nil
}

// Transition flips the tenant status and appends the moderation entry in one
// transaction. The conditional UPDATE locks the row, so concurrent
// transitions on the same tenant serialize and at most one succeeds.
func (r *PostgresTenantRepository) Transition(ctx context.Context, id string, from []domain.TenantStatus, to domain.TenantStatus, by, reason string) (*domain.Tenant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewDependency("failed to begin transaction", err)
	}
	defer tx.Rollback()

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	t, err := scanTenant(tx.QueryRowContext(ctx, `
		UPDATE tenants SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = FALSE AND status = ANY($3)
		RETURNING `+tenantColumns+`
	`, to, id, pq.Array(states)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.transitionFailure(ctx, tx, id, to)
		}
		return nil, domain.NewDependency("failed to update tenant status", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenant_moderation_log (tenant_id, action, by_user, reason)
		VALUES ($1, $2, $3, $4)
	`, id, to, by, reason)
	if err != nil {
		return nil, domain.NewDependency("failed to append moderation log", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewDependency("failed to commit status transition", err)
	}

	r.logger.Info("tenant status transition",
		slog.String("tenant_id", id),
		slog.String("status", string(to)),
		slog.String("by", by),
	)
	return t, nil
}

// transitionFailure distinguishes a missing tenant from a wrong-state one so
// a double approval fails loudly instead of reading like a success.
func (r *PostgresTenantRepository) transitionFailure(ctx context.Context, tx *sql.Tx, id string, to domain.TenantStatus) error {
	var current domain.TenantStatus
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM tenants WHERE id = $1 AND deleted = FALSE
	`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("tenant not found")
		}
		return domain.NewDependency("failed to check tenant status", err)
	}
	return domain.NewConflict(fmt.Sprintf("tenant is %s and cannot transition to %s", current, to))
}

// ModerationLog returns the append-only transition history, oldest first
func (r *PostgresTenantRepository) ModerationLog(ctx context.Context, id string) ([]domain.ModerationEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, by_user, reason, at
		FROM tenant_moderation_log
		WHERE tenant_id = $1
		ORDER BY at ASC, id ASC
	`, id)
	if err != nil {
		return nil, domain.NewDependency("failed to load moderation log", err)
	}
	defer rows.Close()

	var out []domain.ModerationEntry
	for rows.Next() {
		var e domain.ModerationEntry
		if err := rows.Scan(&e.Action, &e.By, &e.Reason, &e.At); err != nil {
			return nil, domain.NewDependency("failed to scan moderation entry", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SoftDelete marks the tenant deleted, hiding it from all lookup paths while
// keeping its history recoverable
func (r *PostgresTenantRepository) SoftDelete(ctx context.Context, id string) error {
	return r.markDeleted(ctx, id, true)
}

// Recover clears the soft-delete marker
func (r *PostgresTenantRepository) Recover(ctx context.Context, id string) error {
	return r.markDeleted(ctx, id, false)
}

func (r *PostgresTenantRepository) markDeleted(ctx context.Context, id string, deleted bool) error {
	var deletedAt any
	if deleted {
		deletedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET deleted = $1, deleted_at = $2, updated_at = NOW()
		WHERE id = $3 AND deleted = $4
	`, deleted, deletedAt, id, !deleted)
	if err != nil {
		return domain.NewDependency("failed to update delete marker", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.NewDependency("failed to check rows affected", err)
	}
	if rows == 0 {
		return domain.NewNotFound("tenant not found")
	}
	return nil
}

// HardDelete permanently removes the tenant; organizations, employees, and
// invitations go with it via ON DELETE CASCADE. There is no undo.
func (r *PostgresTenantRepository) HardDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return domain.NewDependency("failed to delete tenant", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return domain.NewDependency("failed to check rows affected", err)
	}
	if rows == 0 {
		return domain.NewNotFound("tenant not found")
	}
	r.logger.Warn("tenant hard-deleted", slog.String("tenant_id", id))
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
