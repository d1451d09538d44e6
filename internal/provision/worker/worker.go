// Package worker runs provisioning jobs off a bounded in-process queue.
// Confirm enqueues; the worker is the only component that executes pipelines,
// so parallelism is bounded in exactly one place.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	provmetrics "vendo/internal/provision/metrics"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

// Job is one unit of provisioning work.
type Job struct {
	TenantID id.TenantID
}

// Pipeline executes the full provisioning run for one tenant.
type Pipeline interface {
	Run(ctx context.Context, tenantID id.TenantID) error
}

// Queue is a bounded in-memory job buffer. Enqueue never blocks: when the
// buffer is full the caller gets a capacity error instead of a stalled request.
type Queue struct {
	jobs    chan Job
	metrics *provmetrics.Metrics
}

func NewQueue(size int, metrics *provmetrics.Metrics) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		jobs:    make(chan Job, size),
		metrics: metrics,
	}
}

// Enqueue adds a job without blocking. A full queue is a transient capacity
// condition surfaced as CodeUnavailable.
func (q *Queue) Enqueue(ctx context.Context, tenantID id.TenantID) error {
	select {
	case q.jobs <- Job{TenantID: tenantID}:
		if q.metrics != nil {
			q.metrics.SetQueueDepth(len(q.jobs))
		}
		return nil
	default:
		if q.metrics != nil {
			q.metrics.IncrementQueueRejected()
		}
		return dErrors.New(dErrors.CodeUnavailable, "provisioning queue is full, retry later")
	}
}

// Depth reports how many jobs are waiting.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Worker consumes the queue and runs pipelines with bounded concurrency.
type Worker struct {
	queue       *Queue
	pipeline    Pipeline
	concurrency int
	logger      *slog.Logger
	metrics     *provmetrics.Metrics
}

func New(queue *Queue, pipeline Pipeline, concurrency int, logger *slog.Logger, metrics *provmetrics.Metrics) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       queue,
		pipeline:    pipeline,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run consumes jobs until the context is canceled. Each job runs in its own
// goroutine under the concurrency limit; one failed or panicked job never
// affects the others.
func (w *Worker) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(w.concurrency)

	for {
		select {
		case <-ctx.Done():
			// Drain in-flight pipelines before reporting shutdown.
			waitErr := group.Wait()
			if waitErr != nil {
				return waitErr
			}
			return ctx.Err()
		case job := <-w.queue.jobs:
			if w.metrics != nil {
				w.metrics.SetQueueDepth(len(w.queue.jobs))
			}
			group.Go(func() error {
				// Cancellation only stops dequeuing. A job that has started
				// runs to completion, including its registry writes, so a
				// shutdown never strands a tenant mid-pipeline.
				w.runJob(context.WithoutCancel(ctx), job)
				// Job errors are terminal per tenant, not per worker.
				return nil
			})
		}
	}
}

func (w *Worker) runJob(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "provisioning job panicked",
				"tenant_id", job.TenantID,
				"panic", fmt.Sprintf("%v", rec),
			)
		}
	}()

	if err := w.pipeline.Run(ctx, job.TenantID); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "provisioning job failed",
			"tenant_id", job.TenantID,
			"error", err,
		)
	}
}
