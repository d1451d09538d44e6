package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vendo/internal/audit"
	"vendo/internal/plan"
	"vendo/internal/provision/models"
	"vendo/internal/provision/service/mocks"
	stepstore "vendo/internal/provision/store/step"
	tenantstore "vendo/internal/provision/store/tenant"
	"vendo/internal/provision/token"
	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	ctx        context.Context
	ctrl       *gomock.Controller
	tenants    *tenantstore.InMemory
	steps      *stepstore.InMemory
	queue      *mocks.MockEnqueuer
	repairer   *mocks.MockRepairer
	auditStore *audit.InMemoryStore
	svc        *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.tenants = tenantstore.NewInMemory()
	s.steps = stepstore.NewInMemory()
	s.queue = mocks.NewMockEnqueuer(s.ctrl)
	s.repairer = mocks.NewMockRepairer(s.ctrl)
	s.auditStore = audit.NewInMemoryStore()
	s.svc = New(
		s.tenants,
		s.steps,
		token.NewService("test-signing-key", time.Minute),
		plan.NewStaticDirectory(),
		s.queue,
		s.repairer,
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
}

func (s *ServiceSuite) initTenant(slug string) *InitResult {
	res, err := s.svc.Init(s.ctx, "Acme Shop", slug, "Basic")
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestInitRegistersPendingTenant() {
	res := s.initTenant("acme-shop")

	s.Equal(models.TenantStatusPending, res.Tenant.Status)
	s.Equal("ecom_tenant_acme-shop", res.Tenant.DBName)
	s.NotEmpty(res.ConfirmToken)

	stored, err := s.tenants.FindBySlug(s.ctx, "acme-shop")
	s.Require().NoError(err)
	s.Equal(res.Tenant.ID, stored.ID)
}

func (s *ServiceSuite) TestInitNormalizesSlug() {
	res, err := s.svc.Init(s.ctx, "Acme Shop", "  ACME-shop  ", "Basic")
	s.Require().NoError(err)
	s.Equal("acme-shop", res.Tenant.Slug)
}

func (s *ServiceSuite) TestInitUnknownPlan() {
	_, err := s.svc.Init(s.ctx, "Acme Shop", "acme-shop", "Enterprise")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestInitDuplicateSlug() {
	s.initTenant("acme-shop")
	_, err := s.svc.Init(s.ctx, "Other Shop", "acme-shop", "Basic")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestConfirmQueuesProvisioning() {
	res := s.initTenant("acme-shop")

	s.queue.EXPECT().Enqueue(gomock.Any(), res.Tenant.ID).Return(nil)

	tenant, err := s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusSeeding, tenant.Status)

	stored, err := s.tenants.FindByID(s.ctx, res.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusSeeding, stored.Status)
}

func (s *ServiceSuite) TestConfirmReplayRejected() {
	res := s.initTenant("acme-shop")
	s.queue.EXPECT().Enqueue(gomock.Any(), res.Tenant.ID).Return(nil)

	_, err := s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.Require().NoError(err)

	// The token is still cryptographically valid; the status check rejects it.
	_, err = s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestConfirmInvalidToken() {
	_, err := s.svc.Confirm(s.ctx, "not-a-token")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestConfirmUnknownTenant() {
	otherSvc := token.NewService("test-signing-key", time.Minute)
	tok, err := otherSvc.Issue(id.TenantID(uuid.New()), "ghost-shop", time.Now())
	s.Require().NoError(err)

	_, err = s.svc.Confirm(s.ctx, tok)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestConfirmQueueFull() {
	res := s.initTenant("acme-shop")
	s.queue.EXPECT().
		Enqueue(gomock.Any(), res.Tenant.ID).
		Return(dErrors.New(dErrors.CodeUnavailable, "provisioning queue is full, retry later"))

	_, err := s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The failed enqueue hands the tenant back to Pending; the token is still
	// inside its TTL, so the same Confirm call works once the queue drains.
	stored, err := s.tenants.FindByID(s.ctx, res.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusPending, stored.Status)

	s.queue.EXPECT().
		Enqueue(gomock.Any(), res.Tenant.ID).
		Return(nil)

	confirmed, err := s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusSeeding, confirmed.Status)
}

func (s *ServiceSuite) TestStatusIncludesStepHistory() {
	res := s.initTenant("acme-shop")

	record := models.NewRunningStep(id.StepID(uuid.New()), res.Tenant.ID, models.StepCreateDatabase, time.Now())
	s.Require().NoError(record.Complete("database ready", time.Now()))
	s.Require().NoError(s.steps.Append(s.ctx, record))

	status, err := s.svc.Status(s.ctx, res.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusPending, status.Tenant.Status)
	s.Require().Len(status.Steps, 1)
	s.Equal(models.StepCreateDatabase, status.Steps[0].Step)
}

func (s *ServiceSuite) TestStatusUnknownTenant() {
	_, err := s.svc.Status(s.ctx, id.TenantID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) failTenant(slug string) *models.Tenant {
	res := s.initTenant(slug)
	stored, err := s.tenants.FindByID(s.ctx, res.Tenant.ID)
	s.Require().NoError(err)
	stored.MarkFailed("step ApplyMigrations failed", time.Now())
	s.Require().NoError(s.tenants.Update(s.ctx, stored))
	return stored
}

func (s *ServiceSuite) TestRepairRunsForFailedTenant() {
	s.failTenant("acme-shop")
	s.repairer.EXPECT().Repair(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.svc.Repair(s.ctx, "acme-shop")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestRepairRejectsNonFailedTenant() {
	s.initTenant("acme-shop")
	_, err := s.svc.Repair(s.ctx, "acme-shop")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestRepairUnknownTenant() {
	_, err := s.svc.Repair(s.ctx, "ghost-shop")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSuspendAndResume() {
	failed := s.failTenant("acme-shop")
	failed.EncryptedConnection = "ciphertext"
	s.Require().NoError(s.tenants.Update(s.ctx, failed))

	suspended, err := s.svc.Suspend(s.ctx, "acme-shop")
	s.Require().NoError(err)
	s.Equal(models.TenantStatusSuspended, suspended.Status)

	resumed, err := s.svc.Resume(s.ctx, "acme-shop")
	s.Require().NoError(err)
	s.Equal(models.TenantStatusReady, resumed.Status)
}

func (s *ServiceSuite) TestSuspendPendingTenantRejected() {
	s.initTenant("acme-shop")
	_, err := s.svc.Suspend(s.ctx, "acme-shop")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestListFiltersByStatus() {
	s.initTenant("acme-shop")
	s.initTenant("other-shop")
	s.failTenant("broken-shop")

	status := models.TenantStatusFailed
	tenants, total, err := s.svc.List(s.ctx, &status, 1, 20)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(tenants, 1)
	s.Equal("broken-shop", tenants[0].Slug)
}

func (s *ServiceSuite) TestAuditTrailRecordsLifecycle() {
	res := s.initTenant("acme-shop")

	s.queue.EXPECT().Enqueue(gomock.Any(), res.Tenant.ID).Return(nil)
	_, err := s.svc.Confirm(s.ctx, res.ConfirmToken)
	s.Require().NoError(err)

	events, err := s.svc.AuditTrail(s.ctx, "acme-shop")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventTenantInitialized), events[0].Action)
	s.Equal(string(audit.EventTenantConfirmed), events[1].Action)
	s.False(events[0].Timestamp.IsZero())
}

func (s *ServiceSuite) TestAuditTrailUnknownTenant() {
	_, err := s.svc.AuditTrail(s.ctx, "ghost-shop")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
