package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

type TokenSuite struct {
	suite.Suite
	svc      *Service
	tenantID id.TenantID
}

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

func (s *TokenSuite) SetupTest() {
	s.svc = NewService("unit-test-signing-key", DefaultTTL)
	s.tenantID = id.TenantID(uuid.New())
}

func (s *TokenSuite) TestIssueAndValidate() {
	now := time.Now().UTC()
	raw, err := s.svc.Issue(s.tenantID, "acme-store", now)
	s.Require().NoError(err)
	s.NotEmpty(raw)

	claims, err := s.svc.Validate(raw)
	s.Require().NoError(err)
	s.Equal(s.tenantID, claims.TenantID)
	s.Equal("acme-store", claims.Slug)
	s.WithinDuration(now.Add(DefaultTTL), claims.Expiry, time.Second)
}

func (s *TokenSuite) TestValidateRejectsExpiredToken() {
	issuedAt := time.Now().UTC().Add(-16 * time.Minute)
	raw, err := s.svc.Issue(s.tenantID, "acme-store", issuedAt)
	s.Require().NoError(err)

	_, err = s.svc.Validate(raw)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *TokenSuite) TestValidateRejectsWrongKey() {
	raw, err := s.svc.Issue(s.tenantID, "acme-store", time.Now().UTC())
	s.Require().NoError(err)

	other := NewService("a-different-key", DefaultTTL)
	_, err = other.Validate(raw)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *TokenSuite) TestValidateRejectsGarbage() {
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := s.svc.Validate(raw)
		s.Error(err, "input %q", raw)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}
}

func (s *TokenSuite) TestIssueRequiresTenantAndSlug() {
	_, err := s.svc.Issue(id.TenantID{}, "acme-store", time.Now())
	s.Error(err)

	_, err = s.svc.Issue(s.tenantID, "", time.Now())
	s.Error(err)
}

func (s *TokenSuite) TestTTLFallback() {
	svc := NewService("key", 0)
	s.Equal(DefaultTTL, svc.TTL())
}
