package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
)

// PostgresStore persists the tenant registry in the master database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfSlugAvailable atomically creates the tenant if the slug is not taken.
// The unique index on slug closes the race between any pre-check and insert.
func (s *PostgresStore) CreateIfSlugAvailable(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	query := `
		INSERT INTO tenants (id, slug, name, plan_id, status, db_name, encrypted_connection, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.Slug,
		t.Name,
		uuid.UUID(t.PlanID),
		string(t.Status),
		t.DBName,
		t.EncryptedConnection,
		t.LastError,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant slug must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := selectColumns + ` WHERE id = $1`
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return t, nil
}

// FindBySlug retrieves a tenant by slug.
func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := selectColumns + ` WHERE slug = $1`
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by slug: %w", err)
	}
	return t, nil
}

// Update persists mutated lifecycle state. Slug and created_at are immutable.
func (s *PostgresStore) Update(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	query := `
		UPDATE tenants
		SET name = $2, status = $3, db_name = $4, encrypted_connection = $5, last_error = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.Name,
		string(t.Status),
		t.DBName,
		t.EncryptedConnection,
		t.LastError,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns tenants ordered by creation time with optional status filter.
func (s *PostgresStore) List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, int, error) {
	if limit <= 0 {
		limit = 20
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tenants WHERE ($1::text IS NULL OR status = $1)`
	var statusStr *string
	if status != nil {
		str := string(*status)
		statusStr = &str
	}
	if err := s.db.QueryRowContext(ctx, countQuery, statusStr).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	query := selectColumns + `
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at, slug
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, statusStr, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list tenants rows: %w", err)
	}
	return tenants, total, nil
}

// Count returns the total number of tenants.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, slug, name, plan_id, status, db_name, encrypted_connection, last_error, created_at, updated_at
	FROM tenants`

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var t models.Tenant
	var status string
	var tenantID, planID uuid.UUID
	var lastError sql.NullString
	if err := row.Scan(&tenantID, &t.Slug, &t.Name, &planID, &status, &t.DBName,
		&t.EncryptedConnection, &lastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TenantID(tenantID)
	t.PlanID = id.PlanID(planID)
	t.Status = models.TenantStatusFromString(status)
	if lastError.Valid {
		t.LastError = &lastError.String
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
