// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "vendo/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a StepID where a TenantID is
// expected.
type (
	TenantID uuid.UUID
	StepID   uuid.UUID
	PlanID   uuid.UUID
)

// ParseTenantID validates an ID at trust boundaries (handlers, token
// subjects). Step and plan IDs are minted internally and never parsed from
// caller input.
func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

// String methods - for logging and debugging.

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id StepID) String() string   { return uuid.UUID(id).String() }
func (id PlanID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PlanID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
