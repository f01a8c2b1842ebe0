// Package binding implements the `use:` block system: parsing wiring specs
// out of YAML, and resolving them (eagerly or lazily) against a task's data
// store.
package binding

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/nika/nika/engine/core"
)

// Kind discriminates the three YAML shapes a use-wiring entry may take.
type Kind int

const (
	KindPath Kind = iota
	KindBatch
	KindAdvanced
)

// Entry is one alias's wiring specification, decoded from any of the three
// supported YAML shapes into a single representation.
//
//   - KindPath: "task.sub.path" with an optional "?? <default>" suffix.
//   - KindBatch: ["field1", "field2"] — batch extraction from the keyed task.
//   - KindAdvanced: {from, path?, default?, lazy?} — full control.
type Entry struct {
	Kind    Kind
	Path    string
	Fields  []string
	Default *any
	Lazy    bool
}

// advancedShape mirrors the object form's fields for decoding.
type advancedShape struct {
	From    string `yaml:"from" json:"from"`
	Path    string `yaml:"path" json:"path"`
	Default any    `yaml:"default" json:"default"`
	Lazy    bool   `yaml:"lazy" json:"lazy"`
}

// UnmarshalYAML implements the documented decode-by-attempt strategy: string
// first, then array, then object. A shape that fails to decode at all moves
// to the next; a value that decodes under none of the three is rejected.
func (e *Entry) UnmarshalYAML(raw []byte) error {
	var asString string
	if err := yaml.Unmarshal(raw, &asString); err == nil {
		return e.parsePathForm(asString)
	}

	var asBatch []string
	if err := yaml.Unmarshal(raw, &asBatch); err == nil {
		e.Kind = KindBatch
		e.Fields = asBatch
		return nil
	}

	var adv advancedShape
	if err := yaml.Unmarshal(raw, &adv); err != nil {
		return core.NewErrorf(
			core.CodeInvalidSchema,
			map[string]any{"raw": string(raw)},
			"use-wiring entry matches none of the supported shapes (path string, field array, advanced object)",
		)
	}
	if adv.From == "" {
		return core.NewErrorf(core.CodeInvalidSchema, nil, "advanced use-wiring entry requires \"from\"")
	}
	e.Kind = KindAdvanced
	e.Path = buildPath(adv.From, adv.Path)
	e.Lazy = adv.Lazy
	if adv.Default != nil {
		d := adv.Default
		e.Default = &d
	}
	return nil
}

func buildPath(from, path string) string {
	if path == "" {
		return from
	}
	return from + "." + path
}

// parsePathForm splits the unquoted "??" default separator out of a path
// string form. Quoted strings (single or double) survive untouched: the
// separator is only recognized outside quotes.
func (e *Entry) parsePathForm(s string) error {
	path, defaultLiteral, hasDefault := splitDefaultSeparator(s)
	e.Kind = KindPath
	e.Path = strings.TrimSpace(path)
	if !hasDefault {
		return nil
	}
	defaultLiteral = strings.TrimSpace(defaultLiteral)
	var parsed any
	if err := json.Unmarshal([]byte(defaultLiteral), &parsed); err != nil {
		// Bare scalars like unquoted words are treated as string literals.
		parsed = defaultLiteral
	}
	e.Default = &parsed
	return nil
}

// splitDefaultSeparator finds the first unquoted "??" in s.
func splitDefaultSeparator(s string) (path, defaultLiteral string, found bool) {
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '?':
			if !inSingle && !inDouble && i+1 < len(s) && s[i+1] == '?' {
				return s[:i], s[i+2:], true
			}
		}
	}
	return s, "", false
}

// WiringSpec is the parsed `use:` block: alias -> Entry.
type WiringSpec map[string]Entry

// SourceTaskID extracts the upstream task id referenced by an entry: the
// first dot-separated segment of its path, or the keyed task for a batch
// entry (batch entries are keyed by task id at the WiringSpec level, so this
// only applies to Path/Advanced kinds).
func (e Entry) SourceTaskID() string {
	if e.Path == "" {
		return ""
	}
	if idx := strings.IndexByte(e.Path, '.'); idx >= 0 {
		return e.Path[:idx]
	}
	return e.Path
}

// indexSuffix is used by batch resolution to label each extracted field with
// its position, purely for diagnostic messages.
func indexSuffix(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
