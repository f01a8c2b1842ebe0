package core_test

import (
	"errors"
	"testing"

	"github.com/nika/nika/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestSuggestionFor(t *testing.T) {
	t.Run("Should return a suggestion for every registered code", func(t *testing.T) {
		codes := []string{
			core.CodeInvalidPath,
			core.CodeTaskNotFound,
			core.CodePathNotFound,
			core.CodeUnknownAlias,
			core.CodeUseNotUpstream,
			core.CodeJSONPathUnsupported,
			core.CodeMcpValidationFailed,
			core.CodeMcpSchemaError,
			core.CodeAgentMaxTurns,
		}
		for _, c := range codes {
			assert.NotEmpty(t, core.SuggestionFor(c), "code %s should have a suggestion", c)
		}
	})
	t.Run("Should return empty string for unknown code", func(t *testing.T) {
		assert.Empty(t, core.SuggestionFor("NIKA-999"))
	})
}

func TestNewError_AttachesSuggestion(t *testing.T) {
	t.Run("Should populate Suggestion from the code table", func(t *testing.T) {
		err := core.NewError(errors.New("boom"), core.CodePathNotFound, nil)
		assert.Equal(t, core.SuggestionFor(core.CodePathNotFound), err.Suggestion)
		assert.Equal(t, core.CodePathNotFound, err.Code)
	})
}

func TestNewErrorf(t *testing.T) {
	t.Run("Should format the message and attach suggestion", func(t *testing.T) {
		err := core.NewErrorf(core.CodeUnknownAlias, map[string]any{"alias": "foo"}, "unknown alias %q in task %q", "foo", "t1")
		assert.Equal(t, `unknown alias "foo" in task "t1"`, err.Error())
		assert.Equal(t, core.CodeUnknownAlias, err.Code)
		assert.Equal(t, "foo", err.Details["alias"])
	})
}
