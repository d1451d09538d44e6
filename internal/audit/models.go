package audit

import "time"

// Event is emitted from domain logic to capture key lifecycle actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	TenantID  string
	Slug      string
	Actor     string
	Action    string
	Detail    string
}

type AuditEvent string

const (
	EventTenantInitialized     AuditEvent = "tenant_initialized"
	EventTenantConfirmed       AuditEvent = "tenant_confirmed"
	EventProvisioningCompleted AuditEvent = "provisioning_completed"
	EventProvisioningFailed    AuditEvent = "provisioning_failed"
	EventRepairRequested       AuditEvent = "repair_requested"
	EventTenantSuspended       AuditEvent = "tenant_suspended"
	EventTenantResumed         AuditEvent = "tenant_resumed"
)
