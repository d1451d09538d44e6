package service

import (
	"context"
	"errors"
	"time"

	"vendo/internal/audit"
	"vendo/internal/plan"
	"vendo/internal/provision/models"
	"vendo/internal/provision/token"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

//go:generate mockgen -source=contracts.go -destination=mocks/contracts_mock.go -package=mocks

// Store interfaces define persistence contracts.

type TenantStore interface {
	CreateIfSlugAvailable(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, int, error)
	Count(ctx context.Context) (int, error)
}

type StepStore interface {
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]models.ProvisioningStep, error)
}

// TokenService issues and validates confirmation tokens.
type TokenService interface {
	Issue(tenantID id.TenantID, slug string, now time.Time) (string, error)
	Validate(tokenString string) (*token.Claims, error)
}

// PlanDirectory resolves a plan code to the catalog entry.
type PlanDirectory interface {
	Resolve(code string) (plan.Plan, error)
}

// Enqueuer hands a confirmed tenant to the background worker. It must not
// block; a full queue is reported as a domain error.
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID id.TenantID) error
}

// Repairer re-runs the migration step against an existing tenant database.
type Repairer interface {
	Repair(ctx context.Context, tenant *models.Tenant) error
}

// AuditPublisher records lifecycle events and serves them back per tenant.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
	List(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error)
}

// Error wrapping helpers translate sentinel errors to domain errors.

func wrapTenantErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
