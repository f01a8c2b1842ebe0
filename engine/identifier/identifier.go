// Package identifier validates task identifiers against the grammar
// [a-z][a-z0-9_]*, single pass, no allocation beyond the error path.
package identifier

import "github.com/nika/nika/engine/core"

// Validate reports whether s is a well-formed task identifier: a non-empty
// string starting with a lowercase ASCII letter and continuing with
// lowercase letters, digits, or underscores.
func Validate(s string) error {
	if len(s) == 0 {
		return core.NewErrorf(core.CodeInvalidID, map[string]any{"id": s}, "task id must not be empty")
	}
	first := s[0]
	if first < 'a' || first > 'z' {
		return core.NewErrorf(
			core.CodeInvalidID,
			map[string]any{"id": s},
			"task id %q must start with a lowercase letter",
			s,
		)
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return core.NewErrorf(
				core.CodeInvalidID,
				map[string]any{"id": s, "offset": i},
				"task id %q contains invalid character %q at offset %d",
				s,
				c,
				i,
			)
		}
	}
	return nil
}

// IsValid is a boolean convenience wrapper around Validate.
func IsValid(s string) bool {
	return Validate(s) == nil
}
