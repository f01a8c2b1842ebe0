// Package jsonpath implements the restricted JSONPath subset this engine
// supports: an optional leading "$." (or bare "$" for root), dot-separated
// field segments, and "field[i]" / bare numeric segments for array indices.
// Filters, wildcards, slices, and unions are not supported.
package jsonpath

import (
	"strconv"
	"strings"

	"github.com/nika/nika/engine/core"
)

// SegmentKind discriminates a parsed path Segment.
type SegmentKind int

const (
	Field SegmentKind = iota
	Index
)

// Segment is one step of a parsed path: either a Field by name or an Index
// into an array.
type Segment struct {
	Kind SegmentKind
	Name string
	Idx  int
}

// Parse splits path into a sequence of Segments. An unsupported path shape
// (e.g. an empty dot-segment, a non-numeric bracket index, or an unterminated
// bracket) returns a CodeJSONPathUnsupported error.
func Parse(path string) ([]Segment, error) {
	trimmed := path
	switch {
	case trimmed == "$":
		return nil, nil
	case strings.HasPrefix(trimmed, "$."):
		trimmed = trimmed[2:]
	}
	if trimmed == "" {
		return nil, nil
	}

	var segments []Segment
	for _, part := range strings.Split(trimmed, ".") {
		if part == "" {
			return nil, unsupported(path)
		}
		if bracket := strings.IndexByte(part, '['); bracket >= 0 {
			field := part[:bracket]
			if field != "" {
				segments = append(segments, Segment{Kind: Field, Name: field})
			}
			if !strings.HasSuffix(part, "]") {
				return nil, unsupported(path)
			}
			idxStr := part[bracket+1 : len(part)-1]
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 {
				return nil, unsupported(path)
			}
			segments = append(segments, Segment{Kind: Index, Idx: idx})
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
			segments = append(segments, Segment{Kind: Index, Idx: idx})
			continue
		}
		segments = append(segments, Segment{Kind: Field, Name: part})
	}
	return segments, nil
}

func unsupported(path string) error {
	return core.NewErrorf(core.CodeJSONPathUnsupported, map[string]any{"path": path}, "JSONPath %q is not supported", path)
}

// Apply walks value through segments, returning (result, true) on a full
// match or (nil, false) on any mismatch (missing field, out-of-range index,
// or stepping into a non-object/non-array value).
func Apply(value any, segments []Segment) (any, bool) {
	current := value
	for _, seg := range segments {
		switch seg.Kind {
		case Field:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			v, present := m[seg.Name]
			if !present {
				return nil, false
			}
			current = v
		case Index:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if seg.Idx < 0 || seg.Idx >= len(arr) {
				return nil, false
			}
			current = arr[seg.Idx]
		}
	}
	return current, true
}

// Resolve parses path and applies it to value in one step.
func Resolve(value any, path string) (any, bool, error) {
	segments, err := Parse(path)
	if err != nil {
		return nil, false, err
	}
	v, ok := Apply(value, segments)
	return v, ok, nil
}
