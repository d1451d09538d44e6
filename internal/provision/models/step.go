package models

import (
	"time"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

// StepName identifies one pipeline step. The order of the pipeline is fixed;
// these names appear verbatim in the audit log and status responses.
type StepName string

const (
	StepCreateDatabase            StepName = "CreateDatabase"
	StepApplyMigrations           StepName = "ApplyMigrations"
	StepSeedRoles                 StepName = "SeedRoles"
	StepSeedModulesAndPermissions StepName = "SeedModulesAndPermissions"
	StepSeedAdminUser             StepName = "SeedAdminUser"
	StepPersistConnection         StepName = "PersistConnection"
	StepMarkReady                 StepName = "MarkReady"
)

// PipelineOrder is the canonical step sequence for a full provisioning run.
var PipelineOrder = []StepName{
	StepCreateDatabase,
	StepApplyMigrations,
	StepSeedRoles,
	StepSeedModulesAndPermissions,
	StepSeedAdminUser,
	StepPersistConnection,
	StepMarkReady,
}

// StepStatus is the execution state of one audit record.
type StepStatus string

const (
	StepStatusPending   StepStatus = "Pending"
	StepStatusRunning   StepStatus = "Running"
	StepStatusCompleted StepStatus = "Completed"
	StepStatusFailed    StepStatus = "Failed"
)

// ProvisioningStep is one append-mostly audit record: created when a step
// starts, updated exactly once when it finishes, never mutated afterward.
type ProvisioningStep struct {
	ID          id.StepID   `json:"id"`
	TenantID    id.TenantID `json:"tenant_id"`
	Step        StepName    `json:"step"`
	Status      StepStatus  `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Log         string      `json:"log,omitempty"`
}

// NewRunningStep creates the audit record written when a step begins.
func NewRunningStep(stepID id.StepID, tenantID id.TenantID, step StepName, now time.Time) *ProvisioningStep {
	return &ProvisioningStep{
		ID:        stepID,
		TenantID:  tenantID,
		Step:      step,
		Status:    StepStatusRunning,
		StartedAt: now,
	}
}

// Complete finalizes the record as successful. CompletedAt is only ever set
// together with a terminal status.
func (s *ProvisioningStep) Complete(message string, now time.Time) error {
	return s.finish(StepStatusCompleted, message, now)
}

// Fail finalizes the record with the failure message.
func (s *ProvisioningStep) Fail(message string, now time.Time) error {
	return s.finish(StepStatusFailed, message, now)
}

func (s *ProvisioningStep) finish(status StepStatus, message string, now time.Time) error {
	if s.Status != StepStatusRunning && s.Status != StepStatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "step record is already terminal")
	}
	if now.Before(s.StartedAt) {
		now = s.StartedAt
	}
	s.Status = status
	s.Log = message
	s.CompletedAt = &now
	return nil
}

// IsTerminal reports whether the record reached a final status.
func (s *ProvisioningStep) IsTerminal() bool {
	return s.Status == StepStatusCompleted || s.Status == StepStatusFailed
}
