package agent_test

import (
	"context"
	"testing"

	"github.com/nika/nika/engine/agent"
	"github.com/nika/nika/engine/event"
	"github.com/nika/nika/engine/provider"
	"github.com/nika/nika/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func newRunner() *agent.Runner {
	return &agent.Runner{
		Providers: func(name provider.ProviderName) (provider.Provider, error) { return provider.Dispatch(provider.Mock) },
		Emitter:   event.NoopEmitter{},
	}
}

func TestRunner_StopsOnStopCondition(t *testing.T) {
	t.Run("Should terminate as soon as a stop condition substring appears", func(t *testing.T) {
		r := newRunner()
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{Kind: workflow.ActionAgent, Agent: &workflow.AgentAction{
			Prompt:         "DONE please",
			MaxTurns:       intPtr(5),
			DepthLimit:     3,
			StopConditions: []string{"Mock response"},
		}}}
		outcome, err := r.Run(context.Background(), task, task.Action.Agent.Prompt, "")
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Turns)
	})
}

func TestRunner_RunsUntilMaxTurns(t *testing.T) {
	t.Run("Should stop after max_turns when no stop condition ever matches", func(t *testing.T) {
		r := newRunner()
		task := &workflow.Task{ID: "a", Action: workflow.TaskAction{Kind: workflow.ActionAgent, Agent: &workflow.AgentAction{
			Prompt:     "keep going",
			MaxTurns:   intPtr(3),
			DepthLimit: 3,
		}}}
		outcome, err := r.Run(context.Background(), task, task.Action.Agent.Prompt, "")
		require.NoError(t, err)
		assert.Equal(t, 3, outcome.Turns)
	})
}

func TestRunner_SpawnAgent(t *testing.T) {
	t.Run("Should spawn a child agent and fold its final text back in", func(t *testing.T) {
		r := newRunner()
		task := &workflow.Task{ID: "parent", Action: workflow.TaskAction{Kind: workflow.ActionAgent, Agent: &workflow.AgentAction{
			Prompt:     "spawn_agent(child task)",
			MaxTurns:   intPtr(5),
			DepthLimit: 3,
		}}}
		outcome, err := r.Run(context.Background(), task, task.Action.Agent.Prompt, "")
		require.NoError(t, err)
		assert.Contains(t, outcome.FinalText, "child task")
	})

	t.Run("Should fail before spawning once depth_limit would be exceeded", func(t *testing.T) {
		r := newRunner()
		task := &workflow.Task{ID: "parent", Action: workflow.TaskAction{Kind: workflow.ActionAgent, Agent: &workflow.AgentAction{
			Prompt:     "spawn_agent(child task)",
			MaxTurns:   intPtr(5),
			DepthLimit: 0, // a depth_limit of 0 forbids any spawn at all
		}}}
		_, err := r.Run(context.Background(), task, task.Action.Agent.Prompt, "")
		assert.Error(t, err)
	})
}
