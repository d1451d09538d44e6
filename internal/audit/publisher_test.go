package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitSynchronousAppends(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := NewPublisher(store)

	err := p.Emit(ctx, Event{
		TenantID: "tenant-1",
		Slug:     "acme-shop",
		Action:   string(EventTenantInitialized),
	})
	require.NoError(t, err)

	events, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(EventTenantInitialized), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp must be stamped on emit")
}

func TestEmitAsyncDrainsOnClose(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(8))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(ctx, Event{
			TenantID: "tenant-1",
			Action:   string(EventProvisioningCompleted),
		}))
	}
	p.Close()

	events, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestEmitAsyncDropsWhenBufferFull(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(1))

	// More events than the buffer holds; Emit must never block or fail.
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Emit(ctx, Event{
			TenantID: "tenant-1",
			Action:   string(EventProvisioningFailed),
		}))
	}
	p.Close()

	events, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.LessOrEqual(t, len(events), 50)
}
