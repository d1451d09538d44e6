// Package pipeline executes the ordered provisioning steps for one tenant.
// Every step is idempotent, writes an audit record at start and finish, and
// the first failure halts the run. There is no rollback: a failed run leaves
// whatever it created in place for repair to pick up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vendo/internal/audit"
	provmetrics "vendo/internal/provision/metrics"
	"vendo/internal/provision/models"
	"vendo/internal/tenantdb"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
	"vendo/pkg/requestcontext"
	"vendo/pkg/secrets"
)

type TenantStore interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
}

type StepStore interface {
	Append(ctx context.Context, record *models.ProvisioningStep) error
	Update(ctx context.Context, record *models.ProvisioningStep) error
}

type Protector interface {
	Protect(connectionString string) (string, error)
	Unprotect(encrypted string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Config carries the pipeline knobs taken from server configuration.
type Config struct {
	// TenantDSNTemplate is an fmt template with one %s verb for the database name.
	TenantDSNTemplate string
	// MigrationTimeout bounds the ApplyMigrations step.
	MigrationTimeout time.Duration
	// AdminEmailTemplate is an fmt template with one %s verb for the slug.
	AdminEmailTemplate string
}

// Runner executes provisioning runs and repairs.
type Runner struct {
	tenants   TenantStore
	steps     StepStore
	factory   tenantdb.Factory
	protector Protector
	cfg       Config

	logger    *slog.Logger
	metrics   *provmetrics.Metrics
	publisher AuditPublisher
	tracer    trace.Tracer
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func WithMetrics(m *provmetrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

func New(tenants TenantStore, steps StepStore, factory tenantdb.Factory, protector Protector, cfg Config, opts ...Option) *Runner {
	if cfg.AdminEmailTemplate == "" {
		cfg.AdminEmailTemplate = "admin@%s.shops.local"
	}
	r := &Runner{
		tenants:   tenants,
		steps:     steps,
		factory:   factory,
		protector: protector,
		cfg:       cfg,
		tracer:    otel.Tracer("vendo/provision/pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runState carries everything the steps share during one run. The database
// handle is opened by the first step that needs it and closed when the run
// ends, success or not.
type runState struct {
	tenant *models.Tenant
	dsn    string
	db     tenantdb.TenantDatabase
}

func (st *runState) openDB(ctx context.Context, factory tenantdb.Factory) (tenantdb.TenantDatabase, error) {
	if st.db != nil {
		return st.db, nil
	}
	db, err := factory.Open(ctx, st.dsn)
	if err != nil {
		return nil, err
	}
	st.db = db
	return db, nil
}

func (st *runState) close() {
	if st.db != nil {
		st.db.Close()
		st.db = nil
	}
}

type stepFunc func(ctx context.Context, st *runState) (string, error)

// Run executes the full pipeline for a Seeding tenant. It is the only code
// path that moves a tenant from Seeding to Ready or Failed.
func (r *Runner) Run(ctx context.Context, tenantID id.TenantID) error {
	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant for provisioning")
	}
	if tenant.Status != models.TenantStatusSeeding {
		return dErrors.New(dErrors.CodeInvalidState, "tenant is not queued for provisioning")
	}

	start := time.Now()
	st := &runState{
		tenant: tenant,
		dsn:    fmt.Sprintf(r.cfg.TenantDSNTemplate, tenant.DBName),
	}
	defer st.close()

	steps := []struct {
		name models.StepName
		fn   stepFunc
	}{
		{models.StepCreateDatabase, r.createDatabase},
		{models.StepApplyMigrations, r.applyMigrations},
		{models.StepSeedRoles, r.seedRoles},
		{models.StepSeedModulesAndPermissions, r.seedModulesAndPermissions},
		{models.StepSeedAdminUser, r.seedAdminUser},
		{models.StepPersistConnection, r.persistConnection},
		{models.StepMarkReady, r.markReady},
	}

	for _, step := range steps {
		if err := r.runStep(ctx, st, step.name, step.fn); err != nil {
			r.failTenant(ctx, st.tenant, step.name, err)
			if r.metrics != nil {
				r.metrics.ObservePipeline("failed", start)
			}
			r.emitAudit(ctx, audit.EventProvisioningFailed, st.tenant, err.Error())
			return err
		}
	}

	if r.metrics != nil {
		r.metrics.ObservePipeline("completed", start)
	}
	r.emitAudit(ctx, audit.EventProvisioningCompleted, st.tenant, "")
	if r.logger != nil {
		r.logger.InfoContext(ctx, "tenant provisioned",
			"tenant_id", tenant.ID,
			"slug", tenant.Slug,
			"db_name", tenant.DBName,
			"duration", time.Since(start),
		)
	}
	return nil
}

// Repair re-runs migrations against the stored connection of a Failed tenant.
// No database creation and no reseeding: existing data is preserved.
func (r *Runner) Repair(ctx context.Context, tenant *models.Tenant) error {
	dsn, err := r.protector.Unprotect(tenant.EncryptedConnection)
	if err != nil {
		msg := "stored connection could not be decrypted"
		r.failTenant(ctx, tenant, models.StepApplyMigrations, err)
		return dErrors.Wrap(err, dErrors.CodeProvisioning, msg)
	}

	st := &runState{tenant: tenant, dsn: dsn}
	defer st.close()

	if err := r.runStep(ctx, st, models.StepApplyMigrations, r.applyMigrations); err != nil {
		r.failTenant(ctx, tenant, models.StepApplyMigrations, err)
		return err
	}

	now := requestcontext.Now(ctx)
	if err := tenant.MarkReady(now); err != nil {
		return err
	}
	if err := r.tenants.Update(ctx, tenant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist repaired tenant")
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "tenant repaired",
			"tenant_id", tenant.ID,
			"slug", tenant.Slug,
		)
	}
	return nil
}

// runStep wraps one step with its audit record, span, timing, and panic
// recovery. A panic inside a step becomes a step failure, not a crashed worker.
func (r *Runner) runStep(ctx context.Context, st *runState, name models.StepName, fn stepFunc) (err error) {
	now := requestcontext.Now(ctx)
	record := models.NewRunningStep(id.StepID(uuid.New()), st.tenant.ID, name, now)
	if appendErr := r.steps.Append(ctx, record); appendErr != nil {
		return dErrors.Wrap(appendErr, dErrors.CodeInternal, "failed to record step start")
	}

	ctx, span := r.tracer.Start(ctx, "provision."+string(name),
		trace.WithAttributes(
			attribute.String("tenant.id", st.tenant.ID.String()),
			attribute.String("tenant.slug", st.tenant.Slug),
			attribute.String("step", string(name)),
		),
	)
	defer span.End()

	stepStart := time.Now()
	var message string

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = dErrors.New(dErrors.CodeProvisioning, fmt.Sprintf("step panicked: %v", rec))
			}
		}()
		message, err = fn(ctx, st)
	}()

	finished := requestcontext.Now(ctx)
	if r.metrics != nil {
		r.metrics.ObserveStep(string(name), stepStart)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if failErr := record.Fail(err.Error(), finished); failErr == nil {
			if updateErr := r.steps.Update(ctx, record); updateErr != nil && r.logger != nil {
				r.logger.ErrorContext(ctx, "failed to record step failure",
					"tenant_id", st.tenant.ID,
					"step", name,
					"error", updateErr,
				)
			}
		}
		return dErrors.Wrap(err, dErrors.CodeProvisioning, fmt.Sprintf("step %s failed", name))
	}

	if completeErr := record.Complete(message, finished); completeErr == nil {
		if updateErr := r.steps.Update(ctx, record); updateErr != nil && r.logger != nil {
			r.logger.ErrorContext(ctx, "failed to record step completion",
				"tenant_id", st.tenant.ID,
				"step", name,
				"error", updateErr,
			)
		}
	}
	return nil
}

// failTenant lands the tenant in Failed with the step's error message. Best
// effort: if even the registry write fails there is nothing left to do but log.
func (r *Runner) failTenant(ctx context.Context, tenant *models.Tenant, step models.StepName, cause error) {
	msg := fmt.Sprintf("%s: %v", step, rootCause(cause))
	tenant.MarkFailed(msg, requestcontext.Now(ctx))
	if err := r.tenants.Update(ctx, tenant); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to persist failed tenant status",
			"tenant_id", tenant.ID,
			"slug", tenant.Slug,
			"error", err,
		)
	}
}

// rootCause walks the wrap chain so LastError shows what actually broke, not
// the step wrapper.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func (r *Runner) emitAudit(ctx context.Context, event audit.AuditEvent, tenant *models.Tenant, detail string) {
	if r.publisher == nil {
		return
	}
	_ = r.publisher.Emit(ctx, audit.Event{
		TenantID: tenant.ID.String(),
		Slug:     tenant.Slug,
		Action:   string(event),
		Detail:   detail,
	})
}

// Step implementations. Each returns a short human-readable message for the
// audit log.

func (r *Runner) createDatabase(ctx context.Context, st *runState) (string, error) {
	if err := r.factory.EnsureDatabase(ctx, st.tenant.DBName); err != nil {
		return "", err
	}
	return fmt.Sprintf("database %s ready", st.tenant.DBName), nil
}

func (r *Runner) applyMigrations(ctx context.Context, st *runState) (string, error) {
	db, err := st.openDB(ctx, r.factory)
	if err != nil {
		return "", err
	}
	if r.cfg.MigrationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.MigrationTimeout)
		defer cancel()
	}
	if err := db.Migrate(ctx); err != nil {
		return "", err
	}
	return "migrations applied", nil
}

func (r *Runner) seedRoles(ctx context.Context, st *runState) (string, error) {
	db, err := st.openDB(ctx, r.factory)
	if err != nil {
		return "", err
	}
	count, err := db.CountRoles(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "roles already present, skipped", nil
	}
	if err := db.SeedRoles(ctx); err != nil {
		return "", err
	}
	return "default roles seeded", nil
}

func (r *Runner) seedModulesAndPermissions(ctx context.Context, st *runState) (string, error) {
	db, err := st.openDB(ctx, r.factory)
	if err != nil {
		return "", err
	}
	if err := db.SeedModulesAndPermissions(ctx); err != nil {
		return "", err
	}
	return "module catalog and permissions seeded", nil
}

func (r *Runner) seedAdminUser(ctx context.Context, st *runState) (string, error) {
	db, err := st.openDB(ctx, r.factory)
	if err != nil {
		return "", err
	}
	count, err := db.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "users already present, skipped", nil
	}

	tempPassword, err := secrets.Generate()
	if err != nil {
		return "", err
	}
	hash, err := secrets.Hash(tempPassword)
	if err != nil {
		return "", err
	}
	email := fmt.Sprintf(r.cfg.AdminEmailTemplate, st.tenant.Slug)
	if err := db.CreateAdminUser(ctx, email, hash); err != nil {
		return "", err
	}
	return fmt.Sprintf("admin user %s created", email), nil
}

func (r *Runner) persistConnection(ctx context.Context, st *runState) (string, error) {
	encrypted, err := r.protector.Protect(st.dsn)
	if err != nil {
		return "", err
	}
	st.tenant.EncryptedConnection = encrypted
	if err := r.tenants.Update(ctx, st.tenant); err != nil {
		return "", err
	}
	return "connection secret stored", nil
}

func (r *Runner) markReady(ctx context.Context, st *runState) (string, error) {
	if err := st.tenant.MarkReady(requestcontext.Now(ctx)); err != nil {
		return "", err
	}
	if err := r.tenants.Update(ctx, st.tenant); err != nil {
		return "", err
	}
	return "tenant ready", nil
}
