package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

type recordingPipeline struct {
	mu   sync.Mutex
	runs []id.TenantID
	done chan id.TenantID

	panicOn id.TenantID
}

func newRecordingPipeline() *recordingPipeline {
	return &recordingPipeline{done: make(chan id.TenantID, 16)}
}

func (p *recordingPipeline) Run(ctx context.Context, tenantID id.TenantID) error {
	p.mu.Lock()
	p.runs = append(p.runs, tenantID)
	p.mu.Unlock()
	p.done <- tenantID
	if tenantID == p.panicOn {
		panic("pipeline exploded")
	}
	return nil
}

func (p *recordingPipeline) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestQueueEnqueueRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(2, nil)

	require.NoError(t, q.Enqueue(ctx, id.TenantID(uuid.New())))
	require.NoError(t, q.Enqueue(ctx, id.TenantID(uuid.New())))
	assert.Equal(t, 2, q.Depth())

	err := q.Enqueue(ctx, id.TenantID(uuid.New()))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestWorkerProcessesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewQueue(8, nil)
	pipeline := newRecordingPipeline()
	w := New(q, pipeline, 2, nil, nil)

	first := id.TenantID(uuid.New())
	second := id.TenantID(uuid.New())
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	go w.Run(ctx)

	pipeline.waitFor(t, 2)
	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	assert.ElementsMatch(t, []id.TenantID{first, second}, pipeline.runs)
}

func TestWorkerSurvivesPanickingJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewQueue(8, nil)
	pipeline := newRecordingPipeline()
	bad := id.TenantID(uuid.New())
	good := id.TenantID(uuid.New())
	pipeline.panicOn = bad

	w := New(q, pipeline, 1, nil, nil)
	require.NoError(t, q.Enqueue(ctx, bad))
	require.NoError(t, q.Enqueue(ctx, good))

	go w.Run(ctx)

	// Both jobs run even though the first one panics.
	pipeline.waitFor(t, 2)
	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	assert.ElementsMatch(t, []id.TenantID{bad, good}, pipeline.runs)
}

// blockingPipeline holds a job open until released and records the
// cancellation state its context had when it finished.
type blockingPipeline struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func newBlockingPipeline() *blockingPipeline {
	return &blockingPipeline{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (p *blockingPipeline) Run(ctx context.Context, tenantID id.TenantID) error {
	close(p.started)
	<-p.release
	p.ctxErr <- ctx.Err()
	return nil
}

func TestWorkerShutdownDrainsInFlightJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := NewQueue(1, nil)
	pipeline := newBlockingPipeline()
	w := New(q, pipeline, 1, nil, nil)
	require.NoError(t, q.Enqueue(ctx, id.TenantID(uuid.New())))

	stopped := make(chan error, 1)
	go func() {
		stopped <- w.Run(ctx)
	}()

	select {
	case <-pipeline.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	// Cancel while the job is in flight, then let it finish.
	cancel()
	close(pipeline.release)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	// The job's own context was never canceled, so its registry writes
	// would have gone through.
	select {
	case err := <-pipeline.ctxErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reported its context state")
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := NewQueue(1, nil)
	w := New(q, newRecordingPipeline(), 1, nil, nil)

	stopped := make(chan error, 1)
	go func() {
		stopped <- w.Run(ctx)
	}()

	cancel()
	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
