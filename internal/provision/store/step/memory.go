// Package step stores the per-tenant provisioning audit trail.
package step

import (
	"context"
	"sort"
	"sync"

	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
)

// InMemory keeps step records in process memory. Used by tests and by the
// in-memory server profile.
type InMemory struct {
	mu      sync.RWMutex
	steps   map[id.StepID]models.ProvisioningStep
	seq     map[id.StepID]uint64
	nextSeq uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		steps: make(map[id.StepID]models.ProvisioningStep),
		seq:   make(map[id.StepID]uint64),
	}
}

// Append records a newly started step and assigns its position in the trail.
func (s *InMemory) Append(ctx context.Context, record *models.ProvisioningStep) error {
	if record == nil {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[record.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.steps[record.ID] = *record
	s.seq[record.ID] = s.nextSeq
	s.nextSeq++
	return nil
}

// Update writes the terminal status of an existing record.
func (s *InMemory) Update(ctx context.Context, record *models.ProvisioningStep) error {
	if record == nil {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.steps[record.ID] = *record
	return nil
}

// ListByTenant returns all records for one tenant in the order they were
// appended. Start timestamps can collide within a run, so insertion order is
// what keeps the audit trail in execution order.
func (s *InMemory) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]models.ProvisioningStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProvisioningStep, 0, 8)
	for _, record := range s.steps {
		if record.TenantID == tenantID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}
