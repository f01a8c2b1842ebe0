// Package executor dispatches one task's action variant: resolving its
// templated fields against the run's bindings, then running Infer/Exec/
// Fetch/Invoke/Agent to completion.
package executor

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/shlex"
	"github.com/kaptinlin/jsonschema"
	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/datastore"
	"github.com/nika/nika/engine/mcp"
	"github.com/nika/nika/engine/provider"
	"github.com/nika/nika/engine/tplengine"
	"github.com/nika/nika/engine/workflow"
)

// maxRedirects bounds HTTP fetch redirect following per spec.
const maxRedirects = 5

// AgentRunner is the capability an Agent action delegates to; implemented by
// engine/agent.Runner. Kept as a local interface so this package does not
// import engine/agent (engine/agent imports executor for AgentOutcome).
type AgentRunner interface {
	Run(ctx context.Context, task *workflow.Task, resolvedPrompt, resolvedSystem string) (AgentOutcome, error)
}

// AgentOutcome is the terminal result of an agent loop.
type AgentOutcome struct {
	FinalText string
	Turns     int
}

// Executor runs one task to completion.
type Executor struct {
	Providers    func(name provider.ProviderName) (provider.Provider, error)
	MCPClients   map[string]*mcp.Client
	Agents       AgentRunner
	HTTP         *resty.Client
	DefaultProvider string
	DefaultModel    string
}

// New builds an Executor with a resty client configured to cap redirects per
// spec (default 5).
func New(providers func(provider.ProviderName) (provider.Provider, error), mcpClients map[string]*mcp.Client, agents AgentRunner, defaultProvider, defaultModel string) *Executor {
	http := resty.New().SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	return &Executor{
		Providers:       providers,
		MCPClients:      mcpClients,
		Agents:          agents,
		HTTP:            http,
		DefaultProvider: defaultProvider,
		DefaultModel:    defaultModel,
	}
}

// WorkflowDefaults carries the workflow-level provider/model, the middle tier
// of the task > workflow > global precedence.
type WorkflowDefaults struct {
	Provider string
	Model    string
}

// Execute resolves task's templated fields against bindings/store and runs
// its action, returning the resulting datastore.Result. It has no error
// return: every failure (command exit, HTTP error, provider error,
// unresolvable template, missing MCP client) becomes a Failed Result.
func (x *Executor) Execute(ctx context.Context, task *workflow.Task, wfDefaults WorkflowDefaults, bindings *binding.ResolvedBindings, store *datastore.Store) datastore.Result {
	start := time.Now()
	var result datastore.Result
	switch task.Action.Kind {
	case workflow.ActionInfer:
		result = x.runInfer(ctx, task, wfDefaults, bindings, store, start)
	case workflow.ActionExec:
		result = x.runExec(ctx, task, bindings, store, start)
	case workflow.ActionFetch:
		result = x.runFetch(ctx, task, bindings, store, start)
	case workflow.ActionInvoke:
		result = x.runInvoke(ctx, task, bindings, store, start)
	case workflow.ActionAgent:
		result = x.runAgent(ctx, task, bindings, store, start)
	default:
		result = failed(start, "unknown action kind")
	}
	return ApplyOutputPolicy(result, task.Output)
}

func failed(start time.Time, reason string) datastore.Result {
	return datastore.Result{Status: core.StatusFailed, Reason: reason, Duration: time.Since(start)}
}

func succeeded(start time.Time, output any) datastore.Result {
	return datastore.Result{Status: core.StatusSuccess, Output: output, Duration: time.Since(start)}
}

func resolveField(task *workflow.Task, template string, bindings *binding.ResolvedBindings, store *datastore.Store) (string, error) {
	if !strings.Contains(template, "{{") {
		return template, nil
	}
	return tplengine.Resolve(template, bindings, store)
}

func effectiveProvider(taskProvider, wfProvider, global string) string {
	if taskProvider != "" {
		return taskProvider
	}
	if wfProvider != "" {
		return wfProvider
	}
	return global
}

func effectiveModel(taskModel, wfModel, global string) string {
	if taskModel != "" {
		return taskModel
	}
	if wfModel != "" {
		return wfModel
	}
	return global
}

func (x *Executor) runInfer(ctx context.Context, task *workflow.Task, wfDefaults WorkflowDefaults, bindings *binding.ResolvedBindings, store *datastore.Store, start time.Time) datastore.Result {
	action := task.Action.Infer
	prompt, err := resolveField(task, action.Prompt, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	providerName := provider.ProviderName(effectiveProvider(action.Provider, wfDefaults.Provider, x.DefaultProvider))
	model := effectiveModel(action.Model, wfDefaults.Model, x.DefaultModel)
	p, err := x.Providers(providerName)
	if err != nil {
		return failed(start, err.Error())
	}
	completion, err := p.Complete(ctx, provider.CompletionRequest{Prompt: prompt, Model: model})
	if err != nil {
		return failed(start, err.Error())
	}
	if completion.Text == "" {
		return failed(start, "provider returned an empty response")
	}
	return succeeded(start, completion.Text)
}

func (x *Executor) runExec(ctx context.Context, task *workflow.Task, bindings *binding.ResolvedBindings, store *datastore.Store, start time.Time) datastore.Result {
	action := task.Action.Exec
	command, err := resolveField(task, action.Command, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		return failed(start, "unable to parse command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		reason := stderr.String()
		if reason == "" {
			reason = err.Error()
		}
		return failed(start, reason)
	}
	return succeeded(start, strings.TrimRight(stdout.String(), "\n"))
}

func (x *Executor) runFetch(ctx context.Context, task *workflow.Task, bindings *binding.ResolvedBindings, store *datastore.Store, start time.Time) datastore.Result {
	action := task.Action.Fetch
	url, err := resolveField(task, action.URL, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	body, err := resolveField(task, action.Body, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	req := x.HTTP.R().SetContext(ctx)
	for k, v := range action.Headers {
		req.SetHeader(k, v)
	}
	if body != "" {
		req.SetBody(body)
	}
	resp, err := req.Execute(action.EffectiveMethod(), url)
	if err != nil {
		return failed(start, err.Error())
	}
	if resp.IsError() {
		return failed(start, resp.Status())
	}
	return succeeded(start, string(resp.Body()))
}

func (x *Executor) runInvoke(ctx context.Context, task *workflow.Task, bindings *binding.ResolvedBindings, store *datastore.Store, start time.Time) datastore.Result {
	action := task.Action.Invoke
	client, ok := x.MCPClients[action.Mcp]
	if !ok {
		return failed(start, "mcp server \""+action.Mcp+"\" is not configured")
	}
	params, err := resolveParams(task, action.Params, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	var output any
	if action.Tool != "" {
		output, err = client.CallTool(ctx, action.Tool, params)
	} else {
		output, err = client.ReadResource(ctx, action.Resource)
	}
	if err != nil {
		return failed(start, err.Error())
	}
	return succeeded(start, output)
}

func resolveParams(task *workflow.Task, value any, bindings *binding.ResolvedBindings, store *datastore.Store) (map[string]any, error) {
	resolved, err := resolveTemplatedValue(task, value, bindings, store)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]any)
	return m, nil
}

func resolveTemplatedValue(task *workflow.Task, value any, bindings *binding.ResolvedBindings, store *datastore.Store) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveField(task, v, bindings, store)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolveTemplatedValue(task, item, bindings, store)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveTemplatedValue(task, item, bindings, store)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (x *Executor) runAgent(ctx context.Context, task *workflow.Task, bindings *binding.ResolvedBindings, store *datastore.Store, start time.Time) datastore.Result {
	action := task.Action.Agent
	prompt, err := resolveField(task, action.Prompt, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	system, err := resolveField(task, action.System, bindings, store)
	if err != nil {
		return failed(start, err.Error())
	}
	outcome, err := x.Agents.Run(ctx, task, prompt, system)
	if err != nil {
		return failed(start, err.Error())
	}
	return succeeded(start, outcome.FinalText)
}

// ApplyOutputPolicy parses output as JSON and optionally validates it
// against the declared schema when policy requests format: json. A failing
// policy yields a Failed result rather than a thrown error, per spec.
func ApplyOutputPolicy(result datastore.Result, policy *workflow.OutputPolicy) datastore.Result {
	if result.Status != core.StatusSuccess || !policy.IsJSON() {
		return result
	}
	text, ok := result.Output.(string)
	if !ok {
		return result
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return datastore.Result{Status: core.StatusFailed, Reason: "output is not valid JSON", Duration: result.Duration}
	}
	if policy.Schema != "" {
		schemaBytes, err := os.ReadFile(policy.Schema)
		if err != nil {
			return datastore.Result{Status: core.StatusFailed, Reason: "unable to read output schema: " + err.Error(), Duration: result.Duration}
		}
		compiler := jsonschema.NewCompiler()
		schema, err := compiler.Compile(schemaBytes)
		if err != nil {
			return datastore.Result{Status: core.StatusFailed, Reason: "invalid output schema: " + err.Error(), Duration: result.Duration}
		}
		if res := schema.Validate(parsed); !res.IsValid() {
			return datastore.Result{Status: core.StatusFailed, Reason: "output failed schema validation", Duration: result.Duration}
		}
	}
	result.Output = parsed
	return result
}
