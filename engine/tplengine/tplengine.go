// Package tplengine implements the restricted `{{use.alias[.subpath]}}`
// substitution grammar: no conditionals, no iteration, one token kind.
package tplengine

import (
	"encoding/json"
	"strings"

	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/datastore"
	"github.com/nika/nika/engine/jsonpath"
)

// Ref is one `{{use.alias[.subpath]}}` reference found in a template.
type Ref struct {
	Alias   string
	Subpath string
}

const tokenPrefix = "use."

// ExtractRefs enumerates every `{{use.alias[.subpath]}}` reference in
// template, in left-to-right order, without resolving any of them.
func ExtractRefs(template string) ([]Ref, error) {
	var refs []Ref
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return nil, parseErr(template, "unterminated {{ ... }} token")
		}
		token := strings.TrimSpace(rest[start+2 : start+end])
		ref, err := parseToken(template, token)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		rest = rest[start+end+2:]
	}
	return refs, nil
}

func parseToken(template, token string) (Ref, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return Ref{}, parseErr(template, "token %q must start with \"use.\"", token)
	}
	body := token[len(tokenPrefix):]
	if body == "" {
		return Ref{}, parseErr(template, "token %q is missing an alias", token)
	}
	alias, subpath, _ := strings.Cut(body, ".")
	if alias == "" {
		return Ref{}, parseErr(template, "token %q is missing an alias", token)
	}
	return Ref{Alias: alias, Subpath: subpath}, nil
}

// ValidateRefs fails if any reference in template names an alias not present
// in declaredAliases, naming both the alias and taskID in the error.
func ValidateRefs(template string, declaredAliases map[string]bool, taskID string) error {
	refs, err := ExtractRefs(template)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if !declaredAliases[ref.Alias] {
			return core.NewErrorf(
				core.CodeTemplateUndecl,
				map[string]any{"alias": ref.Alias, "task_id": taskID},
				"task %q references undeclared alias %q in its use: block", taskID, ref.Alias,
			)
		}
	}
	return nil
}

// Resolve substitutes every `{{use.alias[.subpath]}}` token in template
// against bindings, resolving pending entries through store. JSON string
// values render unquoted; every other JSON value renders as compact JSON.
func Resolve(template string, bindings *binding.ResolvedBindings, store *datastore.Store) (string, error) {
	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", parseErr(template, "unterminated {{ ... }} token")
		}
		token := strings.TrimSpace(rest[start+2 : start+end])
		ref, err := parseToken(template, token)
		if err != nil {
			return "", err
		}
		rendered, err := renderRef(ref, bindings, store)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
		rest = rest[start+end+2:]
	}
	return out.String(), nil
}

func renderRef(ref Ref, bindings *binding.ResolvedBindings, store *datastore.Store) (string, error) {
	value, err := bindings.GetResolved(ref.Alias, store)
	if err != nil {
		return "", core.NewErrorf(
			core.CodeUnknownAlias,
			map[string]any{"alias": ref.Alias},
			"unknown or unresolvable alias %q", ref.Alias,
		)
	}
	if ref.Subpath != "" {
		segments, err := jsonpath.Parse(ref.Subpath)
		if err != nil {
			return "", err
		}
		var ok bool
		value, ok = jsonpath.Apply(value, segments)
		if !ok {
			return "", core.NewErrorf(
				core.CodeJSONPathNoMatch,
				map[string]any{"alias": ref.Alias, "subpath": ref.Subpath},
				"alias %q has no value at subpath %q", ref.Alias, ref.Subpath,
			)
		}
	}
	return stringify(value)
}

func stringify(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	if value == nil {
		return "null", nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", core.NewError(err, core.CodeInvalidJSON, nil)
	}
	return string(b), nil
}

func parseErr(template, format string, args ...any) error {
	return core.NewErrorf(core.CodeTemplateParse, map[string]any{"template": template}, format, args...)
}
