package tenant

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vendo/internal/provision/models"
	"vendo/internal/sentinel"
	id "vendo/pkg/domain"
)

// ErrNotFound is returned when a tenant is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory stores tenants in memory for tests and the demo environment.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
	slugIdx map[string]string
}

// NewInMemory creates an in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[string]*models.Tenant),
		slugIdx: make(map[string]string),
	}
}

// CreateIfSlugAvailable atomically creates the tenant if the slug is not already taken.
func (s *InMemory) CreateIfSlugAvailable(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slugIdx[t.Slug]; exists {
		return fmt.Errorf("tenant slug must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	key := t.ID.String()
	cp := *t
	s.tenants[key] = &cp
	s.slugIdx[t.Slug] = key
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID.String()]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

// FindBySlug retrieves a tenant by slug.
func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.slugIdx[slug]; ok {
		cp := *s.tenants[key]
		return &cp, nil
	}
	return nil, ErrNotFound
}

// Update persists mutated tenant state. Last write wins.
func (s *InMemory) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.ID.String()
	if _, ok := s.tenants[key]; !ok {
		return ErrNotFound
	}
	cp := *t
	s.tenants[key] = &cp
	return nil
}

// List returns tenants ordered by creation time, optionally filtered by status.
func (s *InMemory) List(_ context.Context, status *models.TenantStatus, limit, offset int) ([]*models.Tenant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if status != nil && t.Status != *status {
			continue
		}
		cp := *t
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Slug < all[j].Slug
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Count returns the total number of tenants.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}
