// Package config loads the engine's runtime configuration: struct defaults
// overridden by NIKA_-prefixed environment variables, validated with
// go-playground/validator/v10 struct tags.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped and the remainder lower-cased to match the koanf
// keys (e.g. NIKA_MAX_CONCURRENT_TASKS -> max_concurrent_tasks).
const envPrefix = "NIKA_"

// Config bounds the resources one run or one process-wide engine instance
// consumes.
type Config struct {
	TraceDir            string        `koanf:"trace_dir" validate:"required"`
	MaxConcurrentTasks  int           `koanf:"max_concurrent_tasks" validate:"required,min=1"`
	MaxWorkflowDuration time.Duration `koanf:"max_workflow_duration" validate:"required"`
	MaxTaskDuration     time.Duration `koanf:"max_task_duration" validate:"required"`
	MaxRetries          int           `koanf:"max_retries" validate:"min=0"`
	MaxRecursionDepth   int           `koanf:"max_recursion_depth" validate:"required,min=1,max=10"`
	DefaultProvider     string        `koanf:"default_provider" validate:"required"`
	DefaultModel        string        `koanf:"default_model"`
}

// Default returns the documented defaults, grounded on limits.rs's
// ResourceLimits::default().
func Default() Config {
	return Config{
		TraceDir:            ".nika/traces",
		MaxConcurrentTasks:  10,
		MaxWorkflowDuration: time.Hour,
		MaxTaskDuration:     5 * time.Minute,
		MaxRetries:          3,
		MaxRecursionDepth:   10,
		DefaultProvider:     "mock",
	}
}

// Load builds a Config from struct defaults, overridden by NIKA_-prefixed
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(".", env.Opt{Prefix: envPrefix, TransformFunc: transformEnvKey}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func transformEnvKey(key, value string) (string, any) {
	return lowerAfterPrefix(key), value
}

func lowerAfterPrefix(key string) string {
	trimmed := key[len(envPrefix):]
	out := make([]byte, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}

var validate = validator.New()

// Validate checks every struct-tag constraint on c.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
