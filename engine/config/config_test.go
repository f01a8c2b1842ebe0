package config_test

import (
	"testing"
	"time"

	"github.com/nika/nika/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should match the documented defaults", func(t *testing.T) {
		cfg := config.Default()
		assert.Equal(t, ".nika/traces", cfg.TraceDir)
		assert.Equal(t, 10, cfg.MaxConcurrentTasks)
		assert.Equal(t, time.Hour, cfg.MaxWorkflowDuration)
		assert.Equal(t, 5*time.Minute, cfg.MaxTaskDuration)
		assert.Equal(t, 3, cfg.MaxRetries)
		assert.Equal(t, 10, cfg.MaxRecursionDepth)
		assert.Equal(t, "mock", cfg.DefaultProvider)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Should accept the defaults", func(t *testing.T) {
		cfg := config.Default()
		require.NoError(t, cfg.Validate())
	})

	t.Run("Should reject a zero concurrency cap", func(t *testing.T) {
		cfg := config.Default()
		cfg.MaxConcurrentTasks = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Should reject a recursion depth above 10", func(t *testing.T) {
		cfg := config.Default()
		cfg.MaxRecursionDepth = 11
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should load the struct defaults with no environment overrides", func(t *testing.T) {
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.MaxConcurrentTasks)
	})

	t.Run("Should apply a NIKA_-prefixed environment override", func(t *testing.T) {
		t.Setenv("NIKA_MAX_CONCURRENT_TASKS", "4")
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.MaxConcurrentTasks)
	})
}
