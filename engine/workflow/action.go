package workflow

import (
	"github.com/goccy/go-yaml"
	"github.com/nika/nika/engine/core"
)

// ActionKind discriminates which of the five action variants a task carries.
type ActionKind string

const (
	ActionInfer  ActionKind = "infer"
	ActionExec   ActionKind = "exec"
	ActionFetch  ActionKind = "fetch"
	ActionInvoke ActionKind = "invoke"
	ActionAgent  ActionKind = "agent"
)

// InferAction requests a single LLM text completion.
type InferAction struct {
	Prompt   string `yaml:"prompt" json:"prompt"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
}

// ExecAction runs a single shell command string.
type ExecAction struct {
	Command string `yaml:"command" json:"command"`
}

// FetchAction issues an HTTP request and returns the body as text.
type FetchAction struct {
	URL     string            `yaml:"url" json:"url"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// EffectiveMethod defaults Method to GET.
func (f *FetchAction) EffectiveMethod() string {
	if f.Method == "" {
		return "GET"
	}
	return f.Method
}

// InvokeAction calls an MCP tool or reads an MCP resource; exactly one of
// Tool/Resource must be set.
type InvokeAction struct {
	Mcp      string         `yaml:"mcp" json:"mcp"`
	Tool     string         `yaml:"tool,omitempty" json:"tool,omitempty"`
	Resource string         `yaml:"resource,omitempty" json:"resource,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Validate enforces the tool/resource mutual-exclusion invariant.
func (a *InvokeAction) Validate() error {
	if (a.Tool == "") == (a.Resource == "") {
		return core.NewErrorf(
			core.CodeMutuallyExclusive,
			map[string]any{"tool": a.Tool, "resource": a.Resource},
			"invoke requires exactly one of tool or resource",
		)
	}
	return nil
}

// AgentAction opens a multi-turn agent loop.
type AgentAction struct {
	Prompt            string   `yaml:"prompt" json:"prompt"`
	System            string   `yaml:"system,omitempty" json:"system,omitempty"`
	Provider          string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model             string   `yaml:"model,omitempty" json:"model,omitempty"`
	Mcp               []string `yaml:"mcp,omitempty" json:"mcp,omitempty"`
	MaxTurns          *int     `yaml:"max_turns,omitempty" json:"max_turns,omitempty"`
	TokenBudget       *uint32  `yaml:"token_budget,omitempty" json:"token_budget,omitempty"`
	DepthLimit        int      `yaml:"depth_limit,omitempty" json:"depth_limit,omitempty"`
	StopConditions    []string `yaml:"stop_conditions,omitempty" json:"stop_conditions,omitempty"`
	ExtendedThinking  bool     `yaml:"extended_thinking,omitempty" json:"extended_thinking,omitempty"`
	ThinkingBudget    int      `yaml:"thinking_budget,omitempty" json:"thinking_budget,omitempty"`
}

const (
	DefaultAgentMaxTurns   = 10
	MaxAgentMaxTurns       = 100
	DefaultAgentDepthLimit = 3
	MaxAgentDepthLimit     = 10
)

// Normalize applies the documented agent defaults and validates bounds.
// MaxTurns is a *int specifically so an explicitly-set "max_turns: 0" (a
// validation failure) is distinguishable from the field being absent from
// the document (which gets DefaultAgentMaxTurns) — both decode to the zero
// value for a plain int.
func (a *AgentAction) Normalize() error {
	if a.Prompt == "" {
		return core.NewError(nil, core.CodeAgentEmptyPrompt, nil)
	}
	if a.MaxTurns == nil {
		def := DefaultAgentMaxTurns
		a.MaxTurns = &def
	}
	if *a.MaxTurns < 1 || *a.MaxTurns > MaxAgentMaxTurns {
		return core.NewErrorf(core.CodeAgentMaxTurns, map[string]any{"max_turns": *a.MaxTurns}, "max_turns must be between 1 and %d", MaxAgentMaxTurns)
	}
	if a.DepthLimit == 0 {
		a.DepthLimit = DefaultAgentDepthLimit
	}
	if a.DepthLimit < 1 || a.DepthLimit > MaxAgentDepthLimit {
		return core.NewErrorf(core.CodeAgentDepthLimit, map[string]any{"depth_limit": a.DepthLimit}, "depth_limit must be between 1 and %d", MaxAgentDepthLimit)
	}
	return nil
}

// TaskAction is the untagged union of the five action variants: exactly one
// field is populated, named by Kind.
type TaskAction struct {
	Kind   ActionKind
	Infer  *InferAction
	Exec   *ExecAction
	Fetch  *FetchAction
	Invoke *InvokeAction
	Agent  *AgentAction
}

// actionShape mirrors the task-level YAML keys used to detect which action
// variant is present.
type actionShape struct {
	Infer  *InferAction  `yaml:"infer"`
	Exec   *ExecAction   `yaml:"exec"`
	Fetch  *FetchAction  `yaml:"fetch"`
	Invoke *InvokeAction `yaml:"invoke"`
	Agent  *AgentAction  `yaml:"agent"`
}

// decodeAction tries each of infer|exec|fetch|invoke|agent in the documented
// fixed order, rejecting a node with zero or more than one action key.
func decodeAction(raw []byte) (TaskAction, error) {
	var shape actionShape
	if err := yaml.Unmarshal(raw, &shape); err != nil {
		return TaskAction{}, core.NewError(err, core.CodeYamlParse, nil)
	}
	present := 0
	var action TaskAction
	if shape.Infer != nil {
		present++
		action = TaskAction{Kind: ActionInfer, Infer: shape.Infer}
	}
	if shape.Exec != nil {
		present++
		action = TaskAction{Kind: ActionExec, Exec: shape.Exec}
	}
	if shape.Fetch != nil {
		present++
		action = TaskAction{Kind: ActionFetch, Fetch: shape.Fetch}
	}
	if shape.Invoke != nil {
		present++
		action = TaskAction{Kind: ActionInvoke, Invoke: shape.Invoke}
	}
	if shape.Agent != nil {
		present++
		action = TaskAction{Kind: ActionAgent, Agent: shape.Agent}
	}
	if present != 1 {
		return TaskAction{}, core.NewErrorf(
			core.CodeMutuallyExclusive,
			map[string]any{"present": present},
			"task action must specify exactly one of infer|exec|fetch|invoke|agent, found %d", present,
		)
	}
	if action.Kind == ActionInvoke {
		if err := action.Invoke.Validate(); err != nil {
			return TaskAction{}, err
		}
	}
	if action.Kind == ActionAgent {
		if err := action.Agent.Normalize(); err != nil {
			return TaskAction{}, err
		}
	}
	return action, nil
}

// TemplateFields collects every string-valued field reachable from the
// action that may contain `{{use.…}}` references.
func (a *TaskAction) TemplateFields() []string {
	switch a.Kind {
	case ActionInfer:
		return []string{a.Infer.Prompt}
	case ActionExec:
		return []string{a.Exec.Command}
	case ActionFetch:
		fields := []string{a.Fetch.URL}
		if a.Fetch.Body != "" {
			fields = append(fields, a.Fetch.Body)
		}
		return fields
	case ActionInvoke:
		var fields []string
		collectStrings(a.Invoke.Params, &fields)
		return fields
	case ActionAgent:
		fields := []string{a.Agent.Prompt}
		if a.Agent.System != "" {
			fields = append(fields, a.Agent.System)
		}
		return fields
	default:
		return nil
	}
}

func collectStrings(value any, out *[]string) {
	switch v := value.(type) {
	case string:
		*out = append(*out, v)
	case []any:
		for _, item := range v {
			collectStrings(item, out)
		}
	case map[string]any:
		for _, item := range v {
			collectStrings(item, out)
		}
	}
}

// UnmarshalYAML decodes a Task's id/use/output/for_each/decompose fields
// normally, then decodes its action via the documented attempt order.
func (t *Task) UnmarshalYAML(raw []byte) error {
	type alias Task
	var shaped alias
	if err := yaml.Unmarshal(raw, &shaped); err != nil {
		return core.NewError(err, core.CodeYamlParse, nil)
	}
	action, err := decodeAction(raw)
	if err != nil {
		return err
	}
	*t = Task(shaped)
	t.Action = action
	return nil
}
