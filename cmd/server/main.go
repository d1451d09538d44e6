// main wires the provisioning API and its background worker. Business logic
// lives in the internal packages; this file only assembles dependencies and
// owns the process lifecycle.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendo/internal/audit"
	"vendo/internal/plan"
	"vendo/internal/platform/config"
	"vendo/internal/platform/database"
	"vendo/internal/platform/health"
	"vendo/internal/platform/logger"
	"vendo/internal/platform/middleware"
	"vendo/internal/protect"
	"vendo/internal/provision/handler"
	provmetrics "vendo/internal/provision/metrics"
	"vendo/internal/provision/pipeline"
	"vendo/internal/provision/service"
	stepstore "vendo/internal/provision/store/step"
	tenantstore "vendo/internal/provision/store/tenant"
	"vendo/internal/provision/token"
	"vendo/internal/provision/worker"
	"vendo/internal/tenantdb"
	"vendo/migrations"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing vendo provisioning service",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"queue_size", cfg.QueueSize,
		"worker_concurrency", cfg.WorkerConcurrency,
	)

	protectorKey := cfg.ProtectorKey
	if protectorKey == "" {
		if cfg.Environment != "dev" {
			log.Error("VENDO_PROTECTOR_KEY is required outside dev")
			os.Exit(1)
		}
		// Dev convenience only: connections encrypted with an ephemeral key
		// are unreadable after restart.
		protectorKey, err = protect.GenerateKey()
		if err != nil {
			log.Error("failed to generate protector key", "error", err)
			os.Exit(1)
		}
		log.Warn("using ephemeral protector key, stored connections will not survive a restart")
	}
	protector, err := protect.New(protectorKey)
	if err != nil {
		log.Error("invalid protector key", "error", err)
		os.Exit(1)
	}

	// Persistence profile: PostgreSQL when a master DSN is configured,
	// otherwise in-memory stores plus a fake tenant database layer for
	// local development.
	var (
		tenants service.TenantStore
		steps   pipelineStepStore
		factory tenantdb.Factory
		pool    *database.Pool
	)
	if cfg.MasterDSN != "" {
		poolCfg := database.DefaultConfig()
		poolCfg.URL = cfg.MasterDSN
		pool, err = database.New(poolCfg)
		if err != nil {
			log.Error("failed to connect to master database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.ApplyMigrations(bootCtx, pool.DB(), migrations.Master, "master"); err != nil {
			cancel()
			log.Error("failed to apply master migrations", "error", err)
			os.Exit(1)
		}
		cancel()

		tenants = tenantstore.NewPostgres(pool.DB())
		steps = stepstore.NewPostgres(pool.DB())
		factory = tenantdb.NewPostgresFactory(pool.DB())
	} else {
		log.Warn("no master DSN configured, using in-memory stores and a fake tenant database layer")
		tenants = tenantstore.NewInMemory()
		steps = stepstore.NewInMemory()
		factory = tenantdb.NewFakeFactory()
	}

	if n, err := tenants.Count(context.Background()); err == nil {
		log.Info("tenant registry loaded", "tenants", n)
	}

	metrics := provmetrics.New()
	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()

	tokens := token.NewService(cfg.ConfirmSigningKey, cfg.ConfirmTokenTTL)
	plans := plan.NewStaticDirectory()

	runner := pipeline.New(tenants, steps, factory, protector,
		pipeline.Config{
			TenantDSNTemplate: cfg.TenantDSNTemplate,
			MigrationTimeout:  cfg.MigrationTimeout,
		},
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics),
		pipeline.WithAuditPublisher(auditPublisher),
	)

	queue := worker.NewQueue(cfg.QueueSize, metrics)
	w := worker.New(queue, runner, cfg.WorkerConcurrency, log, metrics)

	svc := service.New(tenants, steps, tokens, plans, queue, runner,
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithAuditPublisher(auditPublisher),
	)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.BodyLimit(1 << 20))

	healthHandler.Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := handler.New(svc, log)
	router.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		h.Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, log))
		h.RegisterAdmin(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped", "error", err)
		}
	}()

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Let in-flight pipelines land their tenants in a terminal state.
	stopWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("worker did not drain before shutdown deadline")
	}

	log.Info("server stopped")
}

// pipelineStepStore is the union of what the service reads and the pipeline
// writes, so both persistence profiles satisfy a single variable.
type pipelineStepStore interface {
	service.StepStore
	pipeline.StepStore
}
