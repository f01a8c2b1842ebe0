package executor_test

import (
	"context"
	"testing"

	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/datastore"
	"github.com/nika/nika/engine/executor"
	"github.com/nika/nika/engine/mcp"
	"github.com/nika/nika/engine/provider"
	"github.com/nika/nika/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, mcpClients map[string]*mcp.Client) *executor.Executor {
	t.Helper()
	return executor.New(
		func(name provider.ProviderName) (provider.Provider, error) { return provider.Dispatch(provider.Mock) },
		mcpClients,
		nil,
		"mock",
		"",
	)
}

func noBindings(t *testing.T) *binding.ResolvedBindings {
	t.Helper()
	rb, err := binding.FromWiringSpec(nil, datastore.New())
	require.NoError(t, err)
	return rb
}

func TestExecutor_Infer(t *testing.T) {
	t.Run("Should run the mock provider and succeed", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{Kind: workflow.ActionInfer, Infer: &workflow.InferAction{Prompt: "hello"}}}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		assert.True(t, result.Succeeded())
		assert.Contains(t, result.Output, "hello")
	})
}

func TestExecutor_Exec(t *testing.T) {
	t.Run("Should capture stdout on success", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{Kind: workflow.ActionExec, Exec: &workflow.ExecAction{Command: "echo hello"}}}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		require.True(t, result.Succeeded())
		assert.Equal(t, "hello", result.Output)
	})

	t.Run("Should fail on a non-zero exit", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{Kind: workflow.ActionExec, Exec: &workflow.ExecAction{Command: "false"}}}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		assert.Equal(t, core.StatusFailed, result.Status)
	})
}

func TestExecutor_Invoke(t *testing.T) {
	t.Run("Should call the named MCP client's tool", func(t *testing.T) {
		client := mcp.NewMockClient("novanet", map[string]any{"lookup": "ok"})
		x := newExecutor(t, map[string]*mcp.Client{"novanet": client})
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{
			Kind:   workflow.ActionInvoke,
			Invoke: &workflow.InvokeAction{Mcp: "novanet", Tool: "lookup", Params: map[string]any{}},
		}}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		require.True(t, result.Succeeded())
		assert.Equal(t, "ok", result.Output)
	})

	t.Run("Should fail when the named MCP server is not configured", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{
			Kind:   workflow.ActionInvoke,
			Invoke: &workflow.InvokeAction{Mcp: "missing", Tool: "lookup"},
		}}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		assert.Equal(t, core.StatusFailed, result.Status)
	})
}

func TestExecutor_OutputPolicyJSON(t *testing.T) {
	t.Run("Should parse a JSON-formatted output", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{
			ID:     "a",
			Output: &workflow.OutputPolicy{Format: "json"},
			Action: workflow.TaskAction{Kind: workflow.ActionExec, Exec: &workflow.ExecAction{Command: `echo '{"x":1}'`}},
		}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		require.True(t, result.Succeeded())
		assert.Equal(t, map[string]any{"x": float64(1)}, result.Output)
	})

	t.Run("Should fail when declared JSON output does not parse", func(t *testing.T) {
		x := newExecutor(t, nil)
		task := &workflow.Task{
			ID:     "a",
			Output: &workflow.OutputPolicy{Format: "json"},
			Action: workflow.TaskAction{Kind: workflow.ActionExec, Exec: &workflow.ExecAction{Command: "echo not-json"}},
		}
		result := x.Execute(context.Background(), task, executor.WorkflowDefaults{}, noBindings(t), datastore.New())
		assert.Equal(t, core.StatusFailed, result.Status)
	})
}
