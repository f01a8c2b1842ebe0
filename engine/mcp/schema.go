package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/nika/nika/engine/core"
)

// rawSchemaShape is the subset of JSON Schema this package introspects
// directly (beyond compiling it for the overall pass/fail gate) to produce
// per-field diagnostics.
type rawSchemaShape struct {
	Type       string                    `json:"type"`
	Required   []string                  `json:"required"`
	Properties map[string]propertyShape `json:"properties"`
}

type propertyShape struct {
	Type string `json:"type"`
	Enum []any  `json:"enum"`
}

// schemaEntry is one cached (server, tool) schema: the raw JSON, its
// compiled validator, and the field lists used for validation and
// "did you mean?" suggestions.
type schemaEntry struct {
	Raw        json.RawMessage
	Compiled   *jsonschema.Schema
	Required   []string
	Properties []string
	shape      rawSchemaShape
}

var compiler = jsonschema.NewCompiler()

func compileSchema(raw json.RawMessage) (*schemaEntry, error) {
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return nil, core.NewError(err, core.CodeMcpSchemaError, map[string]any{"schema": string(raw)})
	}
	var shape rawSchemaShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, core.NewError(err, core.CodeMcpSchemaError, map[string]any{"schema": string(raw)})
	}
	props := make([]string, 0, len(shape.Properties))
	for name := range shape.Properties {
		props = append(props, name)
	}
	sort.Strings(props)
	return &schemaEntry{
		Raw:        raw,
		Compiled:   compiled,
		Required:   shape.Required,
		Properties: props,
		shape:      shape,
	}, nil
}

// DiagnosticKind discriminates one parameter-validation failure.
type DiagnosticKind string

const (
	DiagMissingRequired DiagnosticKind = "missing_required"
	DiagTypeMismatch    DiagnosticKind = "type_mismatch"
	DiagUnknownField    DiagnosticKind = "unknown_field"
	DiagInvalidEnum     DiagnosticKind = "invalid_enum"
	DiagInvalidValue    DiagnosticKind = "invalid_value"
)

// Diagnostic is one classified parameter-validation failure.
type Diagnostic struct {
	Kind        DiagnosticKind
	Field       string
	Expected    string
	Actual      string
	Allowed     []any
	Suggestions []string
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case DiagMissingRequired:
		return fmt.Sprintf("missing required field %q", d.Field)
	case DiagTypeMismatch:
		return fmt.Sprintf("field %q: expected %s, got %s", d.Field, d.Expected, d.Actual)
	case DiagUnknownField:
		if len(d.Suggestions) > 0 {
			return fmt.Sprintf("unknown field %q (did you mean: %s?)", d.Field, strings.Join(d.Suggestions, ", "))
		}
		return fmt.Sprintf("unknown field %q", d.Field)
	case DiagInvalidEnum:
		return fmt.Sprintf("field %q: %s is not one of %v", d.Field, d.Actual, d.Allowed)
	default:
		return fmt.Sprintf("field %q is invalid", d.Field)
	}
}

// validateParams classifies every diagnostic against entry's schema. The
// compiled validator gates overall well-formedness; the raw shape drives
// per-field classification and enhanced unknown-field suggestions.
func validateParams(entry *schemaEntry, params map[string]any) []Diagnostic {
	var diags []Diagnostic
	for _, field := range entry.Required {
		if _, ok := params[field]; !ok {
			diags = append(diags, Diagnostic{Kind: DiagMissingRequired, Field: field})
		}
	}
	for field, value := range params {
		prop, known := entry.shape.Properties[field]
		if !known {
			diags = append(diags, Diagnostic{
				Kind:        DiagUnknownField,
				Field:       field,
				Suggestions: suggestFields(field, entry.Properties),
			})
			continue
		}
		if prop.Type != "" && !matchesJSONType(value, prop.Type) {
			diags = append(diags, Diagnostic{
				Kind:     DiagTypeMismatch,
				Field:    field,
				Expected: prop.Type,
				Actual:   jsonTypeName(value),
			})
			continue
		}
		if len(prop.Enum) > 0 && !containsAny(prop.Enum, value) {
			diags = append(diags, Diagnostic{
				Kind:    DiagInvalidEnum,
				Field:   field,
				Actual:  fmt.Sprintf("%v", value),
				Allowed: prop.Enum,
			})
		}
	}
	if len(diags) == 0 && entry.Compiled != nil {
		if res := entry.Compiled.Validate(params); !res.IsValid() {
			diags = append(diags, Diagnostic{Kind: DiagInvalidValue, Field: "$"})
		}
	}
	return diags
}

func matchesJSONType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

func containsAny(allowed []any, value any) bool {
	for _, a := range allowed {
		if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", value) {
			return true
		}
	}
	return false
}

// maxSuggestionDistance bounds the case-folded Levenshtein distance a known
// property name must be within to surface as a "did you mean?" suggestion.
const maxSuggestionDistance = 3

func suggestFields(field string, known []string) []string {
	folded := strings.ToLower(field)
	var suggestions []string
	for _, candidate := range known {
		if levenshtein(folded, strings.ToLower(candidate)) <= maxSuggestionDistance {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
