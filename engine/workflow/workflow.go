// Package workflow decodes the YAML workflow document into its Go
// representation: schema-version checked, task actions resolved from their
// untagged union, flow endpoints normalized to lists.
package workflow

import (
	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
)

// schemaConstraint accepts the two recognized schema-tag minor versions.
var schemaConstraint = mustConstraint("0.1.x || 0.2.x")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// McpServerConfig describes one externally-launched MCP server.
type McpServerConfig struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Cwd     string            `yaml:"cwd,omitempty" json:"cwd,omitempty"`
}

// Workflow is the top-level parsed document.
type Workflow struct {
	Schema  string                     `yaml:"schema" json:"schema"`
	Provider string                    `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model   string                     `yaml:"model,omitempty" json:"model,omitempty"`
	Mcp     map[string]McpServerConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`
	Tasks   []Task                     `yaml:"tasks" json:"tasks"`
	Flows   []Flow                     `yaml:"flows,omitempty" json:"flows,omitempty"`
}

// OutputPolicy controls how an executor's raw output is turned into a typed
// task result.
type OutputPolicy struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // "text" (default) | "json"
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"` // path to a JSON Schema file
}

// IsJSON reports whether the policy requests JSON parsing.
func (p *OutputPolicy) IsJSON() bool {
	return p != nil && p.Format == "json"
}

// DecomposeStrategy names a decompose expansion strategy.
type DecomposeStrategy string

const (
	DecomposeSemantic DecomposeStrategy = "Semantic"
	DecomposeStatic   DecomposeStrategy = "Static"
	DecomposeNested   DecomposeStrategy = "Nested"
)

// DecomposeSpec drives runtime DAG expansion via an MCP traversal, a literal
// array, or bounded recursion.
type DecomposeSpec struct {
	Strategy  DecomposeStrategy `yaml:"strategy" json:"strategy"`
	Traverse  string            `yaml:"traverse,omitempty" json:"traverse,omitempty"`
	Source    string            `yaml:"source" json:"source"`
	McpServer string            `yaml:"mcp_server,omitempty" json:"mcp_server,omitempty"`
	MaxItems  *int              `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	MaxDepth  int               `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
}

// DefaultDecomposeMcpServer is used when a DecomposeSpec omits mcp_server.
const DefaultDecomposeMcpServer = "novanet"

// DefaultDecomposeMaxDepth is used when a DecomposeSpec omits max_depth.
const DefaultDecomposeMaxDepth = 3

// Normalize applies the documented decompose defaults in place.
func (d *DecomposeSpec) Normalize() {
	if d.McpServer == "" {
		d.McpServer = DefaultDecomposeMcpServer
	}
	if d.MaxDepth == 0 {
		d.MaxDepth = DefaultDecomposeMaxDepth
	}
}

// Task is one workflow task: identity, wiring, output policy, fan-out
// controls, and exactly one action variant.
type Task struct {
	ID         string             `yaml:"id" json:"id"`
	Use        binding.WiringSpec `yaml:"use,omitempty" json:"use,omitempty"`
	Output     *OutputPolicy      `yaml:"output,omitempty" json:"output,omitempty"`
	ForEach    *string            `yaml:"for_each,omitempty" json:"for_each,omitempty"`
	ForEachAs  string             `yaml:"for_each_as,omitempty" json:"for_each_as,omitempty"`
	Decompose  *DecomposeSpec     `yaml:"decompose,omitempty" json:"decompose,omitempty"`
	Action     TaskAction         `yaml:"-" json:"-"`
}

// ForEachAlias returns the effective loop-variable alias, defaulting to
// "item" when ForEachAs is unset.
func (t *Task) ForEachAlias() string {
	if t.ForEachAs == "" {
		return "item"
	}
	return t.ForEachAs
}

// Flow is one `flows:` declaration; Source/Target are normalized to lists
// during decode regardless of whether the YAML used a scalar or an array.
type Flow struct {
	Source []string `yaml:"-" json:"-"`
	Target []string `yaml:"-" json:"-"`
}

// Load decodes a workflow document, validates its schema tag, decodes each
// task's action via the untagged-union attempt order, and normalizes flow
// endpoints and decompose defaults.
func Load(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, core.NewError(err, core.CodeYamlParse, nil)
	}
	if err := validateSchema(wf.Schema); err != nil {
		return nil, err
	}
	for i := range wf.Tasks {
		if wf.Tasks[i].Decompose != nil {
			wf.Tasks[i].Decompose.Normalize()
		}
	}
	return &wf, nil
}

func validateSchema(tag string) error {
	version, err := parseSchemaTag(tag)
	if err != nil {
		return err
	}
	if !schemaConstraint.Check(version) {
		return core.NewErrorf(
			core.CodeInvalidSchema,
			map[string]any{"schema": tag},
			"unrecognized schema tag %q: expected nika/workflow@0.1 or @0.2", tag,
		)
	}
	return nil
}

func parseSchemaTag(tag string) (*semver.Version, error) {
	const prefix = "nika/workflow@"
	if len(tag) <= len(prefix) || tag[:len(prefix)] != prefix {
		return nil, core.NewErrorf(
			core.CodeInvalidSchema,
			map[string]any{"schema": tag},
			"schema tag %q must start with %q", tag, prefix,
		)
	}
	version, err := semver.NewVersion(tag[len(prefix):])
	if err != nil {
		return nil, core.NewErrorf(
			core.CodeInvalidSchema,
			map[string]any{"schema": tag},
			"schema tag %q has an invalid version suffix", tag,
		)
	}
	return version, nil
}
