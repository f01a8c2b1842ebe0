package mcp_test

import (
	"context"
	"testing"

	"github.com/nika/nika/engine/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_CallTool(t *testing.T) {
	t.Run("Should return the canned result for a registered tool", func(t *testing.T) {
		c := mcp.NewMockClient("novanet", map[string]any{
			"lookup": map[string]any{"entity": "flight", "locale": "en"},
		})
		assert.Equal(t, mcp.Connected, c.State())
		out, err := c.CallTool(context.Background(), "lookup", map[string]any{"id": "1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"entity": "flight", "locale": "en"}, out)
	})

	t.Run("Should fail for an unregistered tool name", func(t *testing.T) {
		c := mcp.NewMockClient("novanet", map[string]any{})
		_, err := c.CallTool(context.Background(), "missing", nil)
		assert.Error(t, err)
	})
}

func TestClient_RequireConnected(t *testing.T) {
	t.Run("Should fail CallTool before Connect", func(t *testing.T) {
		c := mcp.New(mcp.Config{Name: "srv", Command: "true"}, nil)
		_, err := c.CallTool(context.Background(), "tool", nil)
		assert.Error(t, err)
	})

	t.Run("Should fail ReadResource before Connect", func(t *testing.T) {
		c := mcp.New(mcp.Config{Name: "srv", Command: "true"}, nil)
		_, err := c.ReadResource(context.Background(), "res://x")
		assert.Error(t, err)
	})
}

func TestMockClient_ReadResource(t *testing.T) {
	t.Run("Should return the canned resource body", func(t *testing.T) {
		c := mcp.NewMockClient("novanet", map[string]any{
			"res://doc": "hello world",
		})
		out, err := c.ReadResource(context.Background(), "res://doc")
		require.NoError(t, err)
		assert.Equal(t, "hello world", out)
	})
}
