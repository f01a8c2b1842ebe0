package core_test

import (
	"context"
	"testing"

	"github.com/nika/nika/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithGenerationID(t *testing.T) {
	t.Run("Should round-trip a generation id through context", func(t *testing.T) {
		ctx := core.WithGenerationID(context.Background(), "2026-07-29T10-00-00-ab12")
		got, err := core.GetGenerationID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026-07-29T10-00-00-ab12", got)
	})
}

func TestGetGenerationID_Missing(t *testing.T) {
	t.Run("Should error when no generation id was attached", func(t *testing.T) {
		_, err := core.GetGenerationID(context.Background())
		assert.Error(t, err)
	})
	t.Run("Should error when the attached value is empty", func(t *testing.T) {
		ctx := core.WithGenerationID(context.Background(), "")
		_, err := core.GetGenerationID(ctx)
		assert.Error(t, err)
	})
}
