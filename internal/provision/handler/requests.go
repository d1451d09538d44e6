package handler

import (
	"strings"

	dErrors "vendo/pkg/domain-errors"
	"vendo/pkg/validation"
)

// HTTP Request DTOs - contain JSON tags for API serialization.

type InitRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

func (r *InitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Plan = strings.TrimSpace(r.Plan)
}

func (r *InitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if !validation.IsSlug(r.Slug) {
		return dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits, or hyphens (min 3 chars)")
	}
	if r.Plan == "" {
		return dErrors.New(dErrors.CodeValidation, "plan is required")
	}
	return nil
}

type RepairRequest struct {
	Slug string `json:"slug"`
}

func (r *RepairRequest) Normalize() {
	if r == nil {
		return
	}
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
}

func (r *RepairRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if !validation.IsSlug(r.Slug) {
		return dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits, or hyphens (min 3 chars)")
	}
	return nil
}

// bearerToken extracts the credential from an Authorization header. Empty
// string means the header was missing or malformed.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
