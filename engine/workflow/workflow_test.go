package workflow_test

import (
	"testing"

	"github.com/nika/nika/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LinearTwoTask(t *testing.T) {
	t.Run("Should decode the scenario-1 linear workflow", func(t *testing.T) {
		yamlSrc := []byte(`
schema: nika/workflow@0.1
tasks:
  - id: a
    exec:
      command: "echo hello"
  - id: b
    exec:
      command: "echo {{use.prev}}"
    use:
      prev: a
flows:
  - source: a
    target: b
`)
		wf, err := workflow.Load(yamlSrc)
		require.NoError(t, err)
		require.Len(t, wf.Tasks, 2)
		assert.Equal(t, workflow.ActionExec, wf.Tasks[0].Action.Kind)
		assert.Equal(t, "echo hello", wf.Tasks[0].Action.Exec.Command)
		require.Len(t, wf.Flows, 1)
		assert.Equal(t, []string{"a"}, wf.Flows[0].Source)
		assert.Equal(t, []string{"b"}, wf.Flows[0].Target)
	})
}

func TestLoad_SchemaValidation(t *testing.T) {
	t.Run("Should accept schema 0.2", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@0.2\ntasks: []\n"))
		assert.NoError(t, err)
	})
	t.Run("Should reject an unrecognized schema tag", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@9.9\ntasks: []\n"))
		assert.Error(t, err)
	})
	t.Run("Should reject a malformed schema tag", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: not-a-tag\ntasks: []\n"))
		assert.Error(t, err)
	})
}

func TestLoad_FlowListEndpoints(t *testing.T) {
	t.Run("Should normalize list endpoints", func(t *testing.T) {
		yamlSrc := []byte(`
schema: nika/workflow@0.1
tasks:
  - id: a
    exec: { command: "echo a" }
  - id: b
    exec: { command: "echo b" }
  - id: c
    exec: { command: "echo c" }
  - id: d
    exec: { command: "echo d" }
flows:
  - source: [a, b]
    target: [c, d]
`)
		wf, err := workflow.Load(yamlSrc)
		require.NoError(t, err)
		require.Len(t, wf.Flows, 1)
		assert.Equal(t, []string{"a", "b"}, wf.Flows[0].Source)
		assert.Equal(t, []string{"c", "d"}, wf.Flows[0].Target)
	})
}

func TestLoad_ActionVariants(t *testing.T) {
	t.Run("Should decode an infer action", func(t *testing.T) {
		wf, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    infer:\n      prompt: hi\n"))
		require.NoError(t, err)
		assert.Equal(t, workflow.ActionInfer, wf.Tasks[0].Action.Kind)
	})
	t.Run("Should decode a fetch action with a default method", func(t *testing.T) {
		wf, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    fetch:\n      url: http://x\n"))
		require.NoError(t, err)
		assert.Equal(t, "GET", wf.Tasks[0].Action.Fetch.EffectiveMethod())
	})
	t.Run("Should reject an invoke action with both tool and resource", func(t *testing.T) {
		_, err := workflow.Load([]byte(
			"schema: nika/workflow@0.1\ntasks:\n  - id: a\n    invoke:\n      mcp: srv\n      tool: t\n      resource: r\n",
		))
		assert.Error(t, err)
	})
	t.Run("Should reject an invoke action with neither tool nor resource", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    invoke:\n      mcp: srv\n"))
		assert.Error(t, err)
	})
	t.Run("Should reject a task with zero action keys", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n"))
		assert.Error(t, err)
	})
	t.Run("Should reject a task with more than one action key", func(t *testing.T) {
		_, err := workflow.Load([]byte(
			"schema: nika/workflow@0.1\ntasks:\n  - id: a\n    exec: {command: x}\n    infer: {prompt: y}\n",
		))
		assert.Error(t, err)
	})
	t.Run("Should apply agent defaults", func(t *testing.T) {
		wf, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    agent:\n      prompt: hi\n"))
		require.NoError(t, err)
		require.NotNil(t, wf.Tasks[0].Action.Agent.MaxTurns)
		assert.Equal(t, workflow.DefaultAgentMaxTurns, *wf.Tasks[0].Action.Agent.MaxTurns)
		assert.Equal(t, workflow.DefaultAgentDepthLimit, wf.Tasks[0].Action.Agent.DepthLimit)
	})
	t.Run("Should reject an agent action with an empty prompt", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    agent:\n      prompt: \"\"\n"))
		assert.Error(t, err)
	})
	t.Run("Should reject an agent action with max_turns explicitly set to 0", func(t *testing.T) {
		_, err := workflow.Load([]byte("schema: nika/workflow@0.1\ntasks:\n  - id: a\n    agent:\n      prompt: hi\n      max_turns: 0\n"))
		assert.Error(t, err)
	})
}

func TestTaskAction_TemplateFields(t *testing.T) {
	t.Run("Should collect string leaves from invoke params", func(t *testing.T) {
		wf, err := workflow.Load([]byte(
			"schema: nika/workflow@0.1\ntasks:\n  - id: a\n    invoke:\n      mcp: srv\n      tool: t\n      params:\n        x: \"{{use.a}}\"\n        nested:\n          y: \"{{use.b}}\"\n",
		))
		require.NoError(t, err)
		fields := wf.Tasks[0].Action.TemplateFields()
		assert.Contains(t, fields, "{{use.a}}")
		assert.Contains(t, fields, "{{use.b}}")
	})
}

func TestDecomposeSpec_Normalize(t *testing.T) {
	t.Run("Should apply mcp_server and max_depth defaults", func(t *testing.T) {
		wf, err := workflow.Load([]byte(
			"schema: nika/workflow@0.1\ntasks:\n  - id: a\n    exec: {command: x}\n    decompose:\n      strategy: Static\n      source: items\n",
		))
		require.NoError(t, err)
		assert.Equal(t, workflow.DefaultDecomposeMcpServer, wf.Tasks[0].Decompose.McpServer)
		assert.Equal(t, workflow.DefaultDecomposeMaxDepth, wf.Tasks[0].Decompose.MaxDepth)
	})
}
