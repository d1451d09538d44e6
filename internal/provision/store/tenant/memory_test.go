package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
)

func newTenant(t *testing.T, slug string) *models.Tenant {
	t.Helper()
	tenant, err := models.NewTenant(id.TenantID(uuid.New()), "Shop "+slug, slug, id.PlanID(uuid.New()), time.Now().UTC())
	require.NoError(t, err)
	return tenant
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenant := newTenant(t, "acme-store")

	require.NoError(t, store.CreateIfSlugAvailable(ctx, tenant))

	byID, err := store.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Slug, byID.Slug)

	bySlug, err := store.FindBySlug(ctx, "acme-store")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, bySlug.ID)

	_, err = store.FindBySlug(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	require.NoError(t, store.CreateIfSlugAvailable(ctx, newTenant(t, "acme-store")))
	err := store.CreateIfSlugAvailable(ctx, newTenant(t, "acme-store"))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed create must not add a row")
}

func TestInMemoryUpdateIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenant := newTenant(t, "acme-store")
	require.NoError(t, store.CreateIfSlugAvailable(ctx, tenant))

	// Mutating the caller's copy must not leak into the store.
	tenant.Status = models.TenantStatusFailed
	stored, err := store.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusPending, stored.Status)

	require.NoError(t, stored.BeginSeeding(time.Now()))
	require.NoError(t, store.Update(ctx, stored))
	stored, err = store.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusSeeding, stored.Status)
}

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	ready := newTenant(t, "ready-shop")
	require.NoError(t, ready.BeginSeeding(time.Now()))
	ready.EncryptedConnection = "ciphertext"
	require.NoError(t, ready.MarkReady(time.Now()))

	require.NoError(t, store.CreateIfSlugAvailable(ctx, ready))
	require.NoError(t, store.CreateIfSlugAvailable(ctx, newTenant(t, "pending-shop")))

	all, total, err := store.List(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	status := models.TenantStatusReady
	readyOnly, total, err := store.List(ctx, &status, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, readyOnly, 1)
	assert.Equal(t, "ready-shop", readyOnly[0].Slug)

	none, total, err := store.List(ctx, &status, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, none)
}
