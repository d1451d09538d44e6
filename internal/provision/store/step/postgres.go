package step

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
)

// PostgresStore persists step audit records in the master database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed step store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append records a newly started step.
func (s *PostgresStore) Append(ctx context.Context, record *models.ProvisioningStep) error {
	if record == nil {
		return fmt.Errorf("step record is required")
	}
	query := `
		INSERT INTO provisioning_steps (id, tenant_id, step, status, started_at, completed_at, log)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.TenantID),
		string(record.Step),
		string(record.Status),
		record.StartedAt,
		record.CompletedAt,
		record.Log,
	)
	if err != nil {
		return fmt.Errorf("append provisioning step: %w", err)
	}
	return nil
}

// Update writes the terminal status of an existing record. Start metadata is
// immutable once appended.
func (s *PostgresStore) Update(ctx context.Context, record *models.ProvisioningStep) error {
	if record == nil {
		return fmt.Errorf("step record is required")
	}
	query := `
		UPDATE provisioning_steps
		SET status = $2, completed_at = $3, log = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Status),
		record.CompletedAt,
		record.Log,
	)
	if err != nil {
		return fmt.Errorf("update provisioning step: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update provisioning step: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("provisioning step %s: %w", record.ID, sentinel.ErrNotFound)
	}
	return nil
}

// ListByTenant returns the tenant's audit trail in execution order.
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]models.ProvisioningStep, error) {
	query := `
		SELECT id, tenant_id, step, status, started_at, completed_at, log
		FROM provisioning_steps
		WHERE tenant_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list provisioning steps: %w", err)
	}
	defer rows.Close()

	var out []models.ProvisioningStep
	for rows.Next() {
		var (
			record      models.ProvisioningStep
			stepID      uuid.UUID
			tid         uuid.UUID
			stepName    string
			status      string
			completedAt sql.NullTime
			log         sql.NullString
		)
		if err := rows.Scan(&stepID, &tid, &stepName, &status, &record.StartedAt, &completedAt, &log); err != nil {
			return nil, fmt.Errorf("scan provisioning step: %w", err)
		}
		record.ID = id.StepID(stepID)
		record.TenantID = id.TenantID(tid)
		record.Step = models.StepName(stepName)
		record.Status = models.StepStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			record.CompletedAt = &t
		}
		record.Log = log.String
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list provisioning steps: %w", err)
	}
	return out, nil
}
