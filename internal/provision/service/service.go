// Package service orchestrates the tenant provisioning lifecycle: registration,
// confirmation, status reporting, and the administrative surface. All state
// transitions pass through here; the pipeline and worker only execute what this
// package has already committed to the registry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vendo/internal/audit"
	provmetrics "vendo/internal/provision/metrics"
	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
	"vendo/pkg/requestcontext"
)

// Service orchestrates tenant registration and provisioning.
type Service struct {
	tenants        TenantStore
	steps          StepStore
	tokens         TokenService
	plans          PlanDirectory
	queue          Enqueuer
	repairer       Repairer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *provmetrics.Metrics
}

func New(tenants TenantStore, steps StepStore, tokens TokenService, plans PlanDirectory, queue Enqueuer, repairer Repairer, opts ...Option) *Service {
	s := &Service{
		tenants:  tenants,
		steps:    steps,
		tokens:   tokens,
		plans:    plans,
		queue:    queue,
		repairer: repairer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitResult is returned from Init: the registered tenant plus the one-time
// confirmation credential the caller must present to start provisioning.
type InitResult struct {
	Tenant       *models.Tenant
	ConfirmToken string
}

// Init registers a tenant in Pending state and issues its confirmation token.
// No tenant database work happens here.
func (s *Service) Init(ctx context.Context, name, slug, planCode string) (*InitResult, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))

	p, err := s.plans.Resolve(planCode)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	t, err := models.NewTenant(id.TenantID(uuid.New()), name, slug, p.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.tenants.CreateIfSlugAvailable(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) || dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant slug must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register tenant")
	}

	confirmToken, err := s.tokens.Issue(t.ID, t.Slug, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue confirmation token")
	}

	s.logAudit(ctx, audit.EventTenantInitialized, t, "")
	if s.metrics != nil {
		s.metrics.IncrementInitialized()
	}
	return &InitResult{Tenant: t, ConfirmToken: confirmToken}, nil
}

// Confirm validates the token, moves the tenant from Pending to Seeding, and
// enqueues exactly one provisioning job. Any status other than Pending is
// rejected, which also neutralizes token replay inside the TTL window.
func (s *Service) Confirm(ctx context.Context, tokenString string) (*models.Tenant, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	t, err := s.tenants.FindByID(ctx, claims.TenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}

	if err := t.BeginSeeding(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, wrapTenantErr(err, "failed to update tenant")
	}

	if err := s.queue.Enqueue(ctx, t.ID); err != nil {
		// No job made it onto the queue. Hand the tenant back to Pending so the
		// same token can confirm again once the queue drains.
		if revertErr := t.RevertToPending(requestcontext.Now(ctx)); revertErr == nil {
			if updateErr := s.tenants.Update(ctx, t); updateErr != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to revert tenant to pending",
					"tenant_id", t.ID,
					"slug", t.Slug,
					"error", updateErr,
				)
			}
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue provisioning job",
				"tenant_id", t.ID,
				"slug", t.Slug,
				"error", err,
			)
		}
		return nil, err
	}

	s.logAudit(ctx, audit.EventTenantConfirmed, t, "")
	if s.metrics != nil {
		s.metrics.IncrementConfirmed()
	}
	return t, nil
}

// TenantStatus is the read model served by the status endpoint: the registry
// row plus the ordered step audit trail.
type TenantStatus struct {
	Tenant *models.Tenant
	Steps  []models.ProvisioningStep
}

// Status returns the tenant's lifecycle state and its step history.
func (s *Service) Status(ctx context.Context, tenantID id.TenantID) (*TenantStatus, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	steps, err := s.steps.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load step history")
	}
	return &TenantStatus{Tenant: t, Steps: steps}, nil
}

// Repair re-runs migrations against the existing tenant database. Only Failed
// tenants qualify; the existing database and data are preserved.
func (s *Service) Repair(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TenantStatusFailed {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only failed tenants can be repaired")
	}

	s.logAudit(ctx, audit.EventRepairRequested, t, "")

	if err := s.repairer.Repair(ctx, t); err != nil {
		// The repairer has already recorded the failure on the tenant row.
		return nil, err
	}
	return t, nil
}

// Suspend takes a Ready or Failed tenant out of service.
func (s *Service) Suspend(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := t.Suspend(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, wrapTenantErr(err, "failed to update tenant")
	}
	s.logAudit(ctx, audit.EventTenantSuspended, t, "")
	return t, nil
}

// Resume puts a Suspended tenant back in service.
func (s *Service) Resume(ctx context.Context, slug string) (*models.Tenant, error) {
	t, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := t.Resume(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, wrapTenantErr(err, "failed to update tenant")
	}
	s.logAudit(ctx, audit.EventTenantResumed, t, "")
	return t, nil
}

// List returns a page of tenants, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *models.TenantStatus, page, pageSize int) ([]*models.Tenant, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	tenants, total, err := s.tenants.List(ctx, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, total, nil
}

// AuditTrail returns the recorded lifecycle events for one tenant, oldest
// first. Without a configured publisher the trail is empty, not an error.
func (s *Service) AuditTrail(ctx context.Context, slug string) ([]audit.Event, error) {
	t, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.auditPublisher == nil {
		return []audit.Event{}, nil
	}
	events, err := s.auditPublisher.List(ctx, t.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}

func (s *Service) findBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "slug required")
	}
	t, err := s.tenants.FindBySlug(ctx, slug)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return t, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, t *models.Tenant, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"tenant_id", t.ID,
			"slug", t.Slug,
			"status", t.Status,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		TenantID: t.ID.String(),
		Slug:     t.Slug,
		Actor:    requestcontext.Actor(ctx),
		Action:   string(event),
		Detail:   detail,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", event,
			"tenant_id", t.ID,
			"error", err,
		)
	}
}
