package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vendo/pkg/domain-errors"
)

func TestResolveKnownPlans(t *testing.T) {
	dir := NewStaticDirectory()
	for _, code := range []string{"Basic", "Standard", "Premium"} {
		p, err := dir.Resolve(code)
		require.NoError(t, err, "plan %s", code)
		assert.Equal(t, code, p.Code)
		assert.False(t, p.ID.IsNil())
	}
}

func TestResolveUnknownPlan(t *testing.T) {
	dir := NewStaticDirectory()
	_, err := dir.Resolve("Enterprise")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = dir.Resolve("basic")
	assert.Error(t, err, "plan codes are case sensitive")
}
