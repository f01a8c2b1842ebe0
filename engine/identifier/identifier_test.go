package identifier_test

import (
	"testing"

	"github.com/nika/nika/engine/identifier"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Run("Should accept well-formed identifiers", func(t *testing.T) {
		for _, s := range []string{"a", "task", "task_1", "a1_b2_c3", "x"} {
			assert.NoError(t, identifier.Validate(s), s)
		}
	})
	t.Run("Should reject empty string", func(t *testing.T) {
		assert.Error(t, identifier.Validate(""))
	})
	t.Run("Should reject uppercase", func(t *testing.T) {
		assert.Error(t, identifier.Validate("Task"))
	})
	t.Run("Should reject digit-first", func(t *testing.T) {
		assert.Error(t, identifier.Validate("1task"))
	})
	t.Run("Should reject leading underscore", func(t *testing.T) {
		assert.Error(t, identifier.Validate("_task"))
	})
	t.Run("Should reject dashes", func(t *testing.T) {
		assert.Error(t, identifier.Validate("my-task"))
	})
	t.Run("Should reject dots", func(t *testing.T) {
		assert.Error(t, identifier.Validate("my.task"))
	})
	t.Run("Should reject whitespace", func(t *testing.T) {
		assert.Error(t, identifier.Validate("my task"))
	})
	t.Run("Should reject non-ASCII", func(t *testing.T) {
		assert.Error(t, identifier.Validate("tâsk"))
	})
}

func TestIsValid(t *testing.T) {
	t.Run("Should mirror Validate as a boolean", func(t *testing.T) {
		assert.True(t, identifier.IsValid("ok_task"))
		assert.False(t, identifier.IsValid("Bad"))
	})
}
