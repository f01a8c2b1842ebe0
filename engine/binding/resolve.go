package binding

import (
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/datastore"
)

// state tracks one alias's binding lifecycle: either already Resolved with a
// Value, or Pending with enough information (path, default) to resolve it
// later against the store.
type state struct {
	resolved bool
	value    any
	path     string
	fields   []string
	isBatch  bool
	dflt     *any
}

// ResolvedBindings is the outcome of resolving a WiringSpec: eager entries
// carry their value immediately; lazy entries remain Pending until
// GetResolved is called.
type ResolvedBindings struct {
	states map[string]*state
}

// FromWiringSpec resolves every eager entry in spec immediately against
// store, and records every lazy entry as pending. An eager entry whose
// source is missing fails construction; a lazy entry never fails here.
func FromWiringSpec(spec WiringSpec, store *datastore.Store) (*ResolvedBindings, error) {
	rb := &ResolvedBindings{states: make(map[string]*state, len(spec))}
	for alias, entry := range spec {
		st, err := buildState(alias, entry, store)
		if err != nil {
			return nil, err
		}
		rb.states[alias] = st
	}
	return rb, nil
}

func buildState(alias string, entry Entry, store *datastore.Store) (*state, error) {
	switch entry.Kind {
	case KindBatch:
		if entry.Lazy {
			return &state{path: alias, fields: entry.Fields, isBatch: true, dflt: entry.Default}, nil
		}
		value, err := resolveBatch(alias, entry.Fields, store)
		if err != nil {
			return nil, err
		}
		return &state{resolved: true, value: value}, nil
	default:
		if entry.Lazy {
			return &state{path: entry.Path, dflt: entry.Default}, nil
		}
		value, ok := store.ResolvePath(entry.Path)
		if !ok {
			if entry.Default != nil {
				return &state{resolved: true, value: *entry.Default}, nil
			}
			return nil, pathNotFound(alias, entry.Path)
		}
		if value == nil && entry.Default != nil {
			value = *entry.Default
		}
		return &state{resolved: true, value: value}, nil
	}
}

// IsLazy reports whether alias is still pending. An alias not present at all
// is reported as not-lazy (mirrors the original implementation).
func (b *ResolvedBindings) IsLazy(alias string) bool {
	st, ok := b.states[alias]
	return ok && !st.resolved
}

// Get returns the already-resolved value for alias, if any. Pending aliases
// report (nil, false) regardless of whether the source now exists.
func (b *ResolvedBindings) Get(alias string) (any, bool) {
	st, ok := b.states[alias]
	if !ok || !st.resolved {
		return nil, false
	}
	return st.value, true
}

// GetResolved resolves alias against store: returns the cached value if
// already resolved, otherwise resolves the pending path/batch now. A
// pending entry whose source is absent falls back to its default, and only
// fails if neither is available.
func (b *ResolvedBindings) GetResolved(alias string, store *datastore.Store) (any, error) {
	st, ok := b.states[alias]
	if !ok {
		return nil, pathNotFound(alias, "")
	}
	if st.resolved {
		return st.value, nil
	}
	if st.isBatch {
		value, err := resolveBatch(st.path, st.fields, store)
		if err != nil {
			if st.dflt != nil {
				return *st.dflt, nil
			}
			return nil, err
		}
		return value, nil
	}
	value, found := store.ResolvePath(st.path)
	if !found || value == nil {
		if st.dflt != nil {
			return *st.dflt, nil
		}
		return nil, pathNotFound(alias, st.path)
	}
	return value, nil
}

// WithExtra returns a copy of base with one additional already-resolved
// alias, used to inject a for_each/decompose loop variable into an
// iteration's bindings without mutating the shared base.
func WithExtra(base *ResolvedBindings, alias string, value any) *ResolvedBindings {
	states := make(map[string]*state, len(base.states)+1)
	for k, v := range base.states {
		states[k] = v
	}
	states[alias] = &state{resolved: true, value: value}
	return &ResolvedBindings{states: states}
}

// Aliases lists every declared alias, resolved or pending.
func (b *ResolvedBindings) Aliases() []string {
	out := make([]string, 0, len(b.states))
	for alias := range b.states {
		out = append(out, alias)
	}
	return out
}

func resolveBatch(key string, fields []string, store *datastore.Store) (map[string]any, error) {
	base, ok := store.ResolvePath(key)
	if !ok {
		return nil, pathNotFound(key, key)
	}
	obj, ok := base.(map[string]any)
	if !ok {
		return nil, core.NewErrorf(
			core.CodePathNotFound,
			map[string]any{"key": key},
			"batch extraction requires an object result at %q", key,
		)
	}
	out := make(map[string]any, len(fields))
	for i, field := range fields {
		v, ok := obj[field]
		if !ok {
			return nil, core.NewErrorf(
				core.CodePathNotFound,
				map[string]any{"key": key, "field": field, "position": indexSuffix(i)},
				"batch field %q not found at %q", field, key,
			)
		}
		out[field] = v
	}
	return out, nil
}

func pathNotFound(alias, path string) error {
	return core.NewErrorf(
		core.CodePathNotFound,
		map[string]any{"alias": alias, "path": path},
		"binding %q: path %q not found and no default given", alias, path,
	)
}
