package models

import (
	"time"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
	"vendo/pkg/validation"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusPending   TenantStatus = "Pending"
	TenantStatusSeeding   TenantStatus = "Seeding"
	TenantStatusReady     TenantStatus = "Ready"
	TenantStatusFailed    TenantStatus = "Failed"
	TenantStatusSuspended TenantStatus = "Suspended"
)

// TenantStatusFromString converts a stored string to TenantStatus.
// Unknown values map to Failed so a corrupted row never looks servable.
func TenantStatusFromString(s string) TenantStatus {
	switch TenantStatus(s) {
	case TenantStatusPending, TenantStatusSeeding, TenantStatusReady,
		TenantStatusFailed, TenantStatusSuspended:
		return TenantStatus(s)
	default:
		return TenantStatusFailed
	}
}

// DBNamePrefix is prepended to the slug to derive the physical database name.
const DBNamePrefix = "ecom_tenant_"

// Tenant is one isolated customer account with its own physical database.
type Tenant struct {
	ID     id.TenantID  `json:"id"`
	Slug   string       `json:"slug"`
	Name   string       `json:"name"`
	PlanID id.PlanID    `json:"plan_id"`
	Status TenantStatus `json:"status"`
	DBName string       `json:"db_name"`

	// EncryptedConnection is empty until the tenant reaches Ready.
	EncryptedConnection string `json:"-"`

	LastError *string   `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenant creates a Pending tenant with its database name derived from the slug.
// The slug and name are validated here so no invalid row can ever be constructed.
func NewTenant(tenantID id.TenantID, name, slug string, planID id.PlanID, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	if !validation.IsSlug(slug) {
		return nil, dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits, or hyphens (min 3 chars)")
	}
	if planID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "plan is required")
	}
	return &Tenant{
		ID:        tenantID,
		Slug:      slug,
		Name:      name,
		PlanID:    planID,
		Status:    TenantStatusPending,
		DBName:    DBNamePrefix + slug,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsServable reports whether the tenant can serve storefront traffic.
func (t *Tenant) IsServable() bool {
	return t.Status == TenantStatusReady
}

// BeginSeeding transitions Pending -> Seeding. This is the confirm handler's
// transition; every other status is a replay or an out-of-order call.
func (t *Tenant) BeginSeeding(now time.Time) error {
	if t.Status != TenantStatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "tenant is not awaiting confirmation")
	}
	t.Status = TenantStatusSeeding
	t.UpdatedAt = now
	return nil
}

// RevertToPending undoes BeginSeeding when no provisioning job was accepted.
// The tenant returns to Pending so the same confirmation token stays usable.
func (t *Tenant) RevertToPending(now time.Time) error {
	if t.Status != TenantStatusSeeding {
		return dErrors.New(dErrors.CodeInvalidState, "tenant is not seeding")
	}
	t.Status = TenantStatusPending
	t.UpdatedAt = now
	return nil
}

// MarkReady transitions to Ready and clears the last error.
// The encrypted connection must be persisted first; Ready and an empty
// connection must never coexist.
func (t *Tenant) MarkReady(now time.Time) error {
	if t.EncryptedConnection == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant has no stored connection")
	}
	t.Status = TenantStatusReady
	t.LastError = nil
	t.UpdatedAt = now
	return nil
}

// MarkFailed records a pipeline failure. Valid from any non-terminal state so
// the worker can always land a crashed pipeline somewhere observable.
func (t *Tenant) MarkFailed(message string, now time.Time) {
	t.Status = TenantStatusFailed
	t.LastError = &message
	t.UpdatedAt = now
}

// Suspend transitions Ready or Failed -> Suspended (administrative).
func (t *Tenant) Suspend(now time.Time) error {
	if t.Status != TenantStatusReady && t.Status != TenantStatusFailed {
		return dErrors.New(dErrors.CodeInvalidState, "only ready or failed tenants can be suspended")
	}
	t.Status = TenantStatusSuspended
	t.UpdatedAt = now
	return nil
}

// Resume transitions Suspended -> Ready (administrative).
func (t *Tenant) Resume(now time.Time) error {
	if t.Status != TenantStatusSuspended {
		return dErrors.New(dErrors.CodeInvalidState, "tenant is not suspended")
	}
	if t.EncryptedConnection == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant has no stored connection")
	}
	t.Status = TenantStatusReady
	t.UpdatedAt = now
	return nil
}
