// Package datastore implements the thread-safe, task-id-keyed mapping from
// task id to its result. Outputs are stored as plain `any` (the result of
// decoding/producing JSON) so a read is a reference copy, not a deep clone.
package datastore

import (
	"strconv"
	"sync"
	"time"

	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/jsonpath"
)

// IterationKeySeparator joins a for_each base task id to its iteration index
// (e.g. "producer#2"). A character distinct from "." is required since
// ResolvePath splits the incoming path at the first dot to find the task id.
const IterationKeySeparator = "#"

// Result is the outcome of one task execution.
type Result struct {
	Output   any
	Duration time.Duration
	Status   core.StatusType
	Reason   string
}

// Succeeded reports whether the result is a terminal success.
func (r Result) Succeeded() bool {
	return r.Status == core.StatusSuccess
}

// Store is a concurrent task-id -> Result mapping.
type Store struct {
	m sync.Map
}

// New constructs an empty Store.
func New() *Store {
	return &Store{}
}

// Insert records the result for taskID, overwriting any previous result.
func (s *Store) Insert(taskID string, result Result) {
	s.m.Store(taskID, result)
}

// Get returns the result for taskID and whether it was present.
func (s *Store) Get(taskID string) (Result, bool) {
	v, ok := s.m.Load(taskID)
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

// Exists reports whether taskID has any recorded result.
func (s *Store) Exists(taskID string) bool {
	_, ok := s.m.Load(taskID)
	return ok
}

// IsSuccess reports whether taskID has a recorded, successful result.
func (s *Store) IsSuccess(taskID string) bool {
	r, ok := s.Get(taskID)
	return ok && r.Succeeded()
}

// ResolvePath resolves a dotted path whose first segment is a task id against
// the store, then applies the remainder of the path (JSONPath subset) to that
// task's output. Returns (value, true) on a full match; (nil, false) when the
// task is missing, the subpath does not parse, or the subpath does not match.
// The result's status is not checked. The store and traversal never
// distinguish "missing task" from "missing subpath" at this layer — callers
// attach path context to build a typed error.
func (s *Store) ResolvePath(path string) (any, bool) {
	taskID, rest, _ := splitFirstDot(path)
	result, ok := s.Get(taskID)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return result.Output, true
	}
	segments, err := jsonpath.Parse(rest)
	if err != nil {
		return nil, false
	}
	return jsonpath.Apply(result.Output, segments)
}

func splitFirstDot(path string) (head, rest string, found bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}

// IterationKey builds the per-iteration store key for a for_each/decompose
// expansion of baseTaskID.
func IterationKey(baseTaskID string, index int) string {
	return baseTaskID + IterationKeySeparator + strconv.Itoa(index)
}
