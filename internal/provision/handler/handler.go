// Package handler exposes the provisioning lifecycle over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vendo/internal/audit"
	"vendo/internal/platform/middleware"
	"vendo/internal/provision/models"
	"vendo/internal/provision/service"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
	"vendo/pkg/platform/httputil"
)

// Service defines the lifecycle operations the handlers expose.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Init(ctx context.Context, name, slug, planCode string) (*service.InitResult, error)
	Confirm(ctx context.Context, tokenString string) (*models.Tenant, error)
	Status(ctx context.Context, tenantID id.TenantID) (*service.TenantStatus, error)
	Repair(ctx context.Context, slug string) (*models.Tenant, error)
	Suspend(ctx context.Context, slug string) (*models.Tenant, error)
	Resume(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context, status *models.TenantStatus, page, pageSize int) ([]*models.Tenant, int, error)
	AuditTrail(ctx context.Context, slug string) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public provisioning routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/provision/tenants/init", h.HandleInit)
	r.Post("/provision/tenants/confirm", h.HandleConfirm)
	r.Get("/provision/tenants/{id}/status", h.HandleStatus)
}

// RegisterAdmin mounts the superadmin routes. The caller is expected to wrap
// the router with the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/superadmin/tenants/repair", h.HandleRepair)
	r.Post("/superadmin/tenants/{slug}/suspend", h.HandleSuspend)
	r.Post("/superadmin/tenants/{slug}/resume", h.HandleResume)
	r.Get("/superadmin/tenants", h.HandleList)
	r.Get("/superadmin/tenants/{slug}/audit", h.HandleAuditTrail)
}

// HandleInit registers a tenant and returns its confirmation token.
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Init(ctx, req.Name, req.Slug, req.Plan)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant init failed", "error", err, "request_id", requestID, "slug", req.Slug)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &InitResponse{
		ProvisioningID: res.Tenant.ID.String(),
		ConfirmToken:   res.ConfirmToken,
		Next:           "/provision/tenants/confirm",
		Message:        "present the confirmation token to start provisioning",
	})
}

// HandleConfirm consumes a confirmation token and queues provisioning.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "confirmation token required"))
		return
	}

	tenant, err := h.service.Confirm(ctx, token)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant confirm failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ConfirmResponse{
		ProvisioningID: tenant.ID.String(),
		Status:         "QUEUED",
		Message:        "provisioning has been queued",
		StatusEndpoint: fmt.Sprintf("/provision/tenants/%s/status", tenant.ID),
	})
}

// HandleStatus reports the tenant lifecycle state and step history.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "tenant not found"))
		return
	}

	res, err := h.service.Status(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant status failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(res))
}

// HandleRepair re-runs migrations for a failed tenant.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RepairRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenant, err := h.service.Repair(ctx, req.Slug)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant repair failed", "error", err, "request_id", requestID, "slug", req.Slug)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &LifecycleResponse{
		Slug:   tenant.Slug,
		Status: string(tenant.Status),
	})
}

// HandleSuspend takes a tenant out of service.
func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.service.Suspend, "tenant suspend failed")
}

// HandleResume puts a suspended tenant back in service.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.service.Resume, "tenant resume failed")
}

func (h *Handler) handleLifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*models.Tenant, error), failMsg string) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	slug := chi.URLParam(r, "slug")

	tenant, err := op(ctx, slug)
	if err != nil {
		h.logger.ErrorContext(ctx, failMsg, "error", err, "request_id", requestID, "slug", slug)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &LifecycleResponse{
		Slug:   tenant.Slug,
		Status: string(tenant.Status),
	})
}

// HandleList returns a page of tenants for operators.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var status *models.TenantStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.TenantStatusFromString(raw)
		if string(st) != raw {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown status filter"))
			return
		}
		status = &st
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	tenants, total, err := h.service.List(ctx, status, page, pageSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant list failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	summaries := make([]TenantSummary, 0, len(tenants))
	for _, t := range tenants {
		summaries = append(summaries, toTenantSummary(t))
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{
		Tenants:  summaries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// HandleAuditTrail returns a tenant's recorded lifecycle events.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	slug := chi.URLParam(r, "slug")

	events, err := h.service.AuditTrail(ctx, slug)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant audit trail failed", "error", err, "request_id", requestID, "slug", slug)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAuditTrailResponse(slug, events))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
