package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/nika/nika/engine/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	t.Run("Should resolve the built-in mock provider", func(t *testing.T) {
		p, err := provider.Dispatch(provider.Mock)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("Should fail for an unregistered provider name", func(t *testing.T) {
		_, err := provider.Dispatch(provider.Claude)
		assert.Error(t, err)
	})
}

func TestMockProvider_Complete(t *testing.T) {
	t.Run("Should echo a canned response with token usage", func(t *testing.T) {
		m := provider.NewMockProvider()
		out, err := m.Complete(context.Background(), provider.CompletionRequest{Prompt: "hello"})
		require.NoError(t, err)
		assert.Contains(t, out.Text, "hello")
		assert.Greater(t, out.Usage.PromptTokens, 0)
	})

	t.Run("Should sleep for the duration trigger, honoring cancellation", func(t *testing.T) {
		m := provider.NewMockProvider()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := m.Complete(ctx, provider.CompletionRequest{Prompt: "duration: 5s"})
		assert.Error(t, err)
	})

	t.Run("Should block until cancellation on the cancellation-test trigger", func(t *testing.T) {
		m := provider.NewMockProvider()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := m.Complete(ctx, provider.CompletionRequest{Prompt: "cancellation-test"})
		assert.Error(t, err)
	})
}
