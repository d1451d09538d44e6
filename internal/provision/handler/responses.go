package handler

import (
	"time"

	"vendo/internal/audit"
	"vendo/internal/provision/models"
	"vendo/internal/provision/service"
)

// HTTP Response DTOs.

type InitResponse struct {
	ProvisioningID string `json:"provisioningId"`
	ConfirmToken   string `json:"confirmToken"`
	Next           string `json:"next"`
	Message        string `json:"message"`
}

type ConfirmResponse struct {
	ProvisioningID string `json:"provisioningId"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	StatusEndpoint string `json:"statusEndpoint"`
}

type StepResponse struct {
	Step        string     `json:"step"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Log         string     `json:"log,omitempty"`
}

type StatusResponse struct {
	Status string         `json:"status"`
	Slug   string         `json:"slug"`
	DBName string         `json:"dbName"`
	Steps  []StepResponse `json:"steps"`
}

type TenantSummary struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	DBName    string    `json:"dbName"`
	LastError *string   `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListResponse struct {
	Tenants  []TenantSummary `json:"tenants"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

type AuditEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

type AuditTrailResponse struct {
	Slug   string               `json:"slug"`
	Events []AuditEventResponse `json:"events"`
}

type LifecycleResponse struct {
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

func toStatusResponse(res *service.TenantStatus) *StatusResponse {
	steps := make([]StepResponse, 0, len(res.Steps))
	for _, s := range res.Steps {
		steps = append(steps, StepResponse{
			Step:        string(s.Step),
			Status:      string(s.Status),
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			Log:         s.Log,
		})
	}
	return &StatusResponse{
		Status: string(res.Tenant.Status),
		Slug:   res.Tenant.Slug,
		DBName: res.Tenant.DBName,
		Steps:  steps,
	}
}

func toAuditTrailResponse(slug string, events []audit.Event) *AuditTrailResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Action:    e.Action,
			Detail:    e.Detail,
		})
	}
	return &AuditTrailResponse{Slug: slug, Events: out}
}

func toTenantSummary(t *models.Tenant) TenantSummary {
	return TenantSummary{
		ID:        t.ID.String(),
		Slug:      t.Slug,
		Name:      t.Name,
		Status:    string(t.Status),
		DBName:    t.DBName,
		LastError: t.LastError,
		CreatedAt: t.CreatedAt,
	}
}
