// Package token issues and validates the signed confirmation credential that
// gates the Pending -> Seeding transition. Tokens are stateless: validity is a
// function of signature, expiry, and subject shape only. Replay inside the TTL
// window is blocked by the confirm handler's status check, not by this package.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "vendo/pkg/domain"
	dErrors "vendo/pkg/domain-errors"
)

// ConfirmClaims are the claims carried by a confirmation token.
// The subject is the tenant ID; the slug is bound so status responses can be
// rendered without an extra lookup and so tokens cannot be repointed.
type ConfirmClaims struct {
	Slug string `json:"slug"`
	jwt.RegisteredClaims
}

// Claims is the validated, parsed form returned to callers.
type Claims struct {
	TenantID id.TenantID
	Slug     string
	IssuedAt time.Time
	Expiry   time.Time
}

// Service signs and validates confirmation tokens with a shared HS256 key.
type Service struct {
	signingKey []byte
	ttl        time.Duration
}

// DefaultTTL is the absolute lifetime of a confirmation token.
const DefaultTTL = 15 * time.Minute

// NewService builds a token service. A non-positive ttl falls back to DefaultTTL.
func NewService(signingKey string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{signingKey: []byte(signingKey), ttl: ttl}
}

// TTL reports the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue produces a signed confirmation token for one tenant.
// now is passed in so the caller's clock (and tests) control expiry.
func (s *Service) Issue(tenantID id.TenantID, slug string, now time.Time) (string, error) {
	if tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}
	if slug == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "slug is required")
	}

	claims := ConfirmClaims{
		Slug: slug,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign confirmation token")
	}
	return signed, nil
}

// Validate parses and verifies a confirmation token.
// All failure modes collapse to CodeUnauthorized: signature mismatch, wrong
// algorithm, expiry, and malformed subject are indistinguishable to callers.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "confirmation token is required")
	}

	claims := new(ConfirmClaims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "confirmation token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid confirmation token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid confirmation token")
	}

	tenantID, err := id.ParseTenantID(claims.Subject)
	if err != nil || tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "malformed token subject")
	}

	out := &Claims{
		TenantID: tenantID,
		Slug:     claims.Slug,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.Expiry = claims.ExpiresAt.Time
	}
	return out, nil
}
