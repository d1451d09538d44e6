package step

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

func TestInMemoryAppendAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenantID := id.TenantID(uuid.New())

	record := models.NewRunningStep(id.StepID(uuid.New()), tenantID, models.StepCreateDatabase, time.Now().UTC())
	require.NoError(t, store.Append(ctx, record))
	assert.ErrorIs(t, store.Append(ctx, record), sentinel.ErrAlreadyUsed)

	require.NoError(t, record.Complete("database created", time.Now().UTC()))
	require.NoError(t, store.Update(ctx, record))

	trail, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.StepStatusCompleted, trail[0].Status)
	assert.Equal(t, "database created", trail[0].Log)
	require.NotNil(t, trail[0].CompletedAt)
}

func TestInMemoryUpdateUnknownRecord(t *testing.T) {
	store := NewInMemory()
	record := models.NewRunningStep(id.StepID(uuid.New()), id.TenantID(uuid.New()), models.StepSeedRoles, time.Now())
	assert.ErrorIs(t, store.Update(context.Background(), record), sentinel.ErrNotFound)
}

func TestInMemoryListByTenantOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenantID := id.TenantID(uuid.New())
	other := id.TenantID(uuid.New())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := models.NewRunningStep(id.StepID(uuid.New()), tenantID, models.StepCreateDatabase, base)
	second := models.NewRunningStep(id.StepID(uuid.New()), tenantID, models.StepApplyMigrations, base.Add(time.Second))
	foreign := models.NewRunningStep(id.StepID(uuid.New()), other, models.StepCreateDatabase, base)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, foreign))

	trail, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.StepCreateDatabase, trail[0].Step)
	assert.Equal(t, models.StepApplyMigrations, trail[1].Step)
}

func TestInMemoryOrderSurvivesEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tenantID := id.TenantID(uuid.New())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// A fast run can start several steps in the same clock tick. The trail
	// must still read in execution order, not alphabetically.
	for _, name := range models.PipelineOrder {
		record := models.NewRunningStep(id.StepID(uuid.New()), tenantID, name, now)
		require.NoError(t, store.Append(ctx, record))
	}

	trail, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, trail, len(models.PipelineOrder))
	for i, name := range models.PipelineOrder {
		assert.Equal(t, name, trail[i].Step)
	}
}
