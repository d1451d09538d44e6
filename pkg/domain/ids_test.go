package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTenantID(t *testing.T) {
	t.Run("valid uuid parses", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseTenantID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, raw.String(), id.String())
		assert.False(t, id.IsNil())
	})

	t.Run("empty string rejected", func(t *testing.T) {
		_, err := ParseTenantID("")
		assert.Error(t, err)
	})

	t.Run("malformed string rejected", func(t *testing.T) {
		_, err := ParseTenantID("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("nil uuid parses but reports IsNil", func(t *testing.T) {
		id, err := ParseTenantID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})
}
