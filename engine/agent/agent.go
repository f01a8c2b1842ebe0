// Package agent implements the multi-turn agent loop a task's `agent:`
// action delegates to: repeated provider turns up to max_turns, a
// spawn_agent tool enforcing depth_limit before any recursive spawn, and
// termination on a stop-condition match, token-budget exhaustion, or a
// final tool-use response.
package agent

import (
	"context"
	"strings"

	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/event"
	"github.com/nika/nika/engine/executor"
	"github.com/nika/nika/engine/mcp"
	"github.com/nika/nika/engine/provider"
	"github.com/nika/nika/engine/workflow"
)

type depthCtxKey struct{}

func depthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthCtxKey{}).(int)
	return d
}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthCtxKey{}, depth)
}

// spawnPrefix/spawnSuffix mark the mock "tool use" idiom a turn's response
// text uses to request a recursive spawn: "spawn_agent(<child prompt>)".
const spawnPrefix = "spawn_agent("
const spawnSuffix = ")"

// Runner executes agent actions, delegating text completion to a Provider
// and tool access to the task's configured MCP clients.
type Runner struct {
	Providers  func(name provider.ProviderName) (provider.Provider, error)
	MCPClients map[string]*mcp.Client
	Emitter    event.Emitter
}

var _ executor.AgentRunner = (*Runner)(nil)

// Run drives task's agent loop to completion.
func (r *Runner) Run(ctx context.Context, task *workflow.Task, resolvedPrompt, resolvedSystem string) (executor.AgentOutcome, error) {
	action := task.Action.Agent
	providerName := provider.ProviderName(action.Provider)
	if providerName == "" {
		providerName = provider.Mock
	}
	p, err := r.Providers(providerName)
	if err != nil {
		return executor.AgentOutcome{}, err
	}

	transcript := resolvedPrompt
	var lastText string
	turn := 0
	tokensUsed := 0

	for turn = 1; turn <= effectiveMaxTurns(action); turn++ {
		r.emit(event.AgentTurn(task.ID, event.AgentTurnStarted, nil))

		completion, err := p.Complete(ctx, provider.CompletionRequest{
			Prompt: transcript,
			System: resolvedSystem,
			Model:  action.Model,
		})
		if err != nil {
			return executor.AgentOutcome{}, err
		}
		tokensUsed += completion.Usage.PromptTokens + completion.Usage.CompletionTokens
		lastText = completion.Text

		r.emit(event.AgentTurn(task.ID, event.AgentTurnResponse, &event.AgentTurnMetadata{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			ResponseText: completion.Text,
		}))

		if action.TokenBudget != nil && tokensUsed >= int(*action.TokenBudget) {
			break
		}
		if stopConditionMatch(completion.Text, action.StopConditions) {
			break
		}

		if childPrompt, isSpawn := parseSpawnRequest(completion.Text); isSpawn {
			childText, err := r.spawn(ctx, task, childPrompt, resolvedSystem)
			if err != nil {
				return executor.AgentOutcome{}, err
			}
			lastText = childText
			break
		}

		transcript = completion.Text
	}

	if limit := effectiveMaxTurns(action); turn > limit {
		turn = limit
	}
	return executor.AgentOutcome{FinalText: lastText, Turns: turn}, nil
}

func (r *Runner) spawn(ctx context.Context, parent *workflow.Task, childPrompt, system string) (string, error) {
	parentAction := parent.Action.Agent
	depth := depthFromContext(ctx)
	if depth+1 > parentAction.DepthLimit {
		return "", spawnDepthExceeded(parentAction.DepthLimit)
	}

	childID := parent.ID + "/child"
	r.emit(event.AgentSpawned(parent.ID, childID, depth+1))

	childTask := &workflow.Task{
		ID: childID,
		Action: workflow.TaskAction{
			Kind: workflow.ActionAgent,
			Agent: &workflow.AgentAction{
				Prompt:         childPrompt,
				Provider:       parentAction.Provider,
				Model:          parentAction.Model,
				MaxTurns:       parentAction.MaxTurns,
				DepthLimit:     parentAction.DepthLimit,
				StopConditions: parentAction.StopConditions,
			},
		},
	}
	childCtx := withDepth(ctx, depth+1)
	outcome, err := r.Run(childCtx, childTask, childPrompt, system)
	if err != nil {
		return "", err
	}
	return outcome.FinalText, nil
}

func (r *Runner) emit(kind event.EventKind) {
	if r.Emitter == nil {
		return
	}
	r.Emitter.Emit(kind)
}

// effectiveMaxTurns falls back to the documented default when MaxTurns was
// never normalized (e.g. an AgentAction built directly rather than decoded
// from YAML, where Normalize runs automatically).
func effectiveMaxTurns(a *workflow.AgentAction) int {
	if a.MaxTurns == nil {
		return workflow.DefaultAgentMaxTurns
	}
	return *a.MaxTurns
}

func stopConditionMatch(text string, conditions []string) bool {
	for _, c := range conditions {
		if c != "" && strings.Contains(text, c) {
			return true
		}
	}
	return false
}

func spawnDepthExceeded(limit int) error {
	return core.NewErrorf(
		core.CodeAgentDepthLimit,
		map[string]any{"depth_limit": limit},
		"spawn_agent exceeds depth_limit %d", limit,
	)
}

func parseSpawnRequest(text string) (childPrompt string, ok bool) {
	start := strings.Index(text, spawnPrefix)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(spawnPrefix):]
	end := strings.Index(rest, spawnSuffix)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
