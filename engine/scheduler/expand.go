package scheduler

import (
	"context"
	"sync"

	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/datastore"
	"github.com/nika/nika/engine/event"
	"github.com/nika/nika/engine/executor"
	"github.com/nika/nika/engine/workflow"
)

// runForEach expands task once per element of its resolved for_each source,
// running every iteration independently (bounded by the run's concurrency
// cap) and aggregating the per-iteration results into an ordered JSON array
// stored under the base task id.
func (r *Runner) runForEach(ctx context.Context, task *workflow.Task, wfDefaults executor.WorkflowDefaults, bindings *binding.ResolvedBindings) datastore.Result {
	items, err := resolveArraySource(*task.ForEach, bindings, r.Store)
	if err != nil {
		return datastore.Result{Status: core.StatusFailed, Reason: err.Error()}
	}
	if len(items) == 0 {
		return datastore.Result{Status: core.StatusFailed, Reason: "for_each source resolved to an empty array"}
	}
	return r.runIterations(ctx, task, wfDefaults, bindings, task.ForEachAlias(), items)
}

// runIterations runs one task execution per element of items, aggregating
// into an ordered array under task.ID in the store, regardless of iteration
// completion order.
func (r *Runner) runIterations(ctx context.Context, task *workflow.Task, wfDefaults executor.WorkflowDefaults, bindings *binding.ResolvedBindings, loopAlias string, items []any) datastore.Result {
	outputs := make([]any, len(items))
	failures := make([]string, len(items))

	sem := make(chan struct{}, r.Config.MaxConcurrentTasks)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, element any) {
			defer wg.Done()
			defer func() { <-sem }()

			iterBindings := binding.WithExtra(bindings, loopAlias, element)
			result := r.Executor.Execute(ctx, task, wfDefaults, iterBindings, r.Store)
			iterID := datastore.IterationKey(task.ID, index)
			r.Store.Insert(iterID, result)
			if result.Succeeded() {
				outputs[index] = result.Output
			} else {
				failures[index] = result.Reason
			}
		}(i, item)
	}
	wg.Wait()

	for i, reason := range failures {
		if reason != "" {
			return datastore.Result{Status: core.StatusFailed, Reason: "iteration " + datastore.IterationKey(task.ID, i) + " failed: " + reason}
		}
	}
	return datastore.Result{Status: core.StatusSuccess, Output: outputs}
}

// runDecompose expands task per its decompose strategy: Static treats source
// as a literal array, Semantic calls the configured MCP server's traverse
// tool to discover items at runtime, Nested recurses bounded by max_depth.
func (r *Runner) runDecompose(ctx context.Context, task *workflow.Task, wfDefaults executor.WorkflowDefaults, bindings *binding.ResolvedBindings) datastore.Result {
	spec := task.Decompose
	switch spec.Strategy {
	case workflow.DecomposeStatic:
		items, err := resolveArraySource(spec.Source, bindings, r.Store)
		if err != nil {
			return datastore.Result{Status: core.StatusFailed, Reason: err.Error()}
		}
		return r.runIterations(ctx, task, wfDefaults, bindings, task.ForEachAlias(), applyMaxItems(items, spec.MaxItems))

	case workflow.DecomposeSemantic:
		client, ok := r.MCPClients[spec.McpServer]
		if !ok {
			return datastore.Result{Status: core.StatusFailed, Reason: "mcp server \"" + spec.McpServer + "\" is not configured"}
		}
		discovered, err := client.CallTool(ctx, "traverse", map[string]any{"arc": spec.Traverse, "source": spec.Source})
		if err != nil {
			return datastore.Result{Status: core.StatusFailed, Reason: err.Error()}
		}
		items, ok := discovered.([]any)
		if !ok {
			return datastore.Result{Status: core.StatusFailed, Reason: "traverse tool did not return a JSON array"}
		}
		return r.runIterations(ctx, task, wfDefaults, bindings, task.ForEachAlias(), applyMaxItems(items, spec.MaxItems))

	case workflow.DecomposeNested:
		return r.runNestedDecompose(ctx, task, wfDefaults, bindings, spec.MaxDepth)

	default:
		return datastore.Result{Status: core.StatusFailed, Reason: "unknown decompose strategy"}
	}
}

func applyMaxItems(items []any, max *int) []any {
	if max == nil || *max <= 0 || *max >= len(items) {
		return items
	}
	return items[:*max]
}

// runNestedDecompose recursively re-runs task against its own prior level's
// output, bounded by depth, folding every level's iteration outputs into one
// flattened ordered array.
func (r *Runner) runNestedDecompose(ctx context.Context, task *workflow.Task, wfDefaults executor.WorkflowDefaults, bindings *binding.ResolvedBindings, maxDepth int) datastore.Result {
	items, err := resolveArraySource(task.Decompose.Source, bindings, r.Store)
	if err != nil {
		return datastore.Result{Status: core.StatusFailed, Reason: err.Error()}
	}

	var all []any
	frontier := items
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		levelResult := r.runIterations(ctx, task, wfDefaults, bindings, task.ForEachAlias(), frontier)
		if !levelResult.Succeeded() {
			return levelResult
		}
		levelOutputs, _ := levelResult.Output.([]any)
		all = append(all, levelOutputs...)

		var next []any
		for _, out := range levelOutputs {
			if nested, ok := out.([]any); ok {
				next = append(next, nested...)
			}
		}
		frontier = next
	}

	r.Log.Emit(event.ContextSummarized(task.ID, "nested decompose completed"))
	return datastore.Result{Status: core.StatusSuccess, Output: all}
}
