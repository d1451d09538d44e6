package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSlug(t *testing.T) {
	valid := []string{"abc", "acme-store", "test-shop", "a1b2c3", "123"}
	for _, s := range valid {
		assert.True(t, IsSlug(s), "expected %q to be a valid slug", s)
	}

	invalid := []string{"", "ab", "Acme", "acme_store", "acme store", "café", "ACME"}
	for _, s := range invalid {
		assert.False(t, IsSlug(s), "expected %q to be rejected", s)
	}
}

func TestValidateStruct(t *testing.T) {
	type initReq struct {
		Name string `validate:"required,notblank,max=128"`
		Slug string `validate:"required,slug"`
	}

	t.Run("valid struct passes", func(t *testing.T) {
		assert.NoError(t, Validate(&initReq{Name: "Acme", Slug: "acme-store"}))
	})

	t.Run("bad slug produces field message", func(t *testing.T) {
		err := Validate(&initReq{Name: "Acme", Slug: "Acme!"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "slug")
	})

	t.Run("blank name rejected", func(t *testing.T) {
		err := Validate(&initReq{Name: "   ", Slug: "acme-store"})
		assert.Error(t, err)
	})
}
