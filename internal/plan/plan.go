// Package plan resolves commercial plan codes to stable plan identifiers.
// The orchestrator only needs read-only lookups; plan management lives in the
// billing surface outside this service.
package plan

import (
	"github.com/google/uuid"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

// Plan describes one purchasable tier.
type Plan struct {
	ID   id.PlanID
	Code string
	Name string
}

// Directory resolves plan codes for tenant initialization.
type Directory interface {
	Resolve(code string) (Plan, error)
}

// StaticDirectory serves the fixed plan catalog.
type StaticDirectory struct {
	byCode map[string]Plan
}

// NewStaticDirectory builds the default catalog.
func NewStaticDirectory() *StaticDirectory {
	plans := []Plan{
		{ID: id.PlanID(uuid.MustParse("6f1c0a52-1111-4a8e-9d37-7d2b3f1a0001")), Code: "Basic", Name: "Basic"},
		{ID: id.PlanID(uuid.MustParse("6f1c0a52-1111-4a8e-9d37-7d2b3f1a0002")), Code: "Standard", Name: "Standard"},
		{ID: id.PlanID(uuid.MustParse("6f1c0a52-1111-4a8e-9d37-7d2b3f1a0003")), Code: "Premium", Name: "Premium"},
	}
	byCode := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byCode[p.Code] = p
	}
	return &StaticDirectory{byCode: byCode}
}

// Resolve returns the plan for a code, or a validation error for unknown codes.
// Unknown plans fail Init with 400, not 404: the caller sent a bad request.
func (d *StaticDirectory) Resolve(code string) (Plan, error) {
	p, ok := d.byCode[code]
	if !ok {
		return Plan{}, dErrors.New(dErrors.CodeValidation, "unknown plan code")
	}
	return p, nil
}

var _ Directory = (*StaticDirectory)(nil)
