// Package scheduler implements the Runner: the ready-set scheduling loop
// that drives a workflow's tasks to completion, expanding for_each/decompose
// fan-out, enforcing the concurrency cap and workflow deadline, and applying
// the fail-fast failure policy.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/dagvalidate"
	"github.com/nika/nika/engine/datastore"
	"github.com/nika/nika/engine/event"
	"github.com/nika/nika/engine/executor"
	"github.com/nika/nika/engine/flow"
	"github.com/nika/nika/engine/mcp"
	"github.com/nika/nika/engine/tplengine"
	"github.com/nika/nika/engine/workflow"
)

// Config bounds one run's resource usage.
type Config struct {
	MaxConcurrentTasks int
	MaxWorkflowDuration time.Duration
	MaxTaskDuration     time.Duration
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks:  10,
		MaxWorkflowDuration: time.Hour,
		MaxTaskDuration:     5 * time.Minute,
	}
}

// Runner owns one workflow run's event log, data store, and executor, and
// drives the scheduling loop described in spec.md §4.10.
type Runner struct {
	Workflow   *workflow.Workflow
	Graph      *flow.Graph
	Executor   *executor.Executor
	Store      *datastore.Store
	Log        *event.Log
	Config     Config
	MCPClients map[string]*mcp.Client

	tasksByID map[string]*workflow.Task

	mu        sync.Mutex
	inFlight  map[string]bool
	completed int
}

// New validates wf's DAG and builds a Runner ready to Run.
func New(wf *workflow.Workflow, exec *executor.Executor, cfg Config) (*Runner, error) {
	taskIDs := make([]string, 0, len(wf.Tasks))
	tasksByID := make(map[string]*workflow.Task, len(wf.Tasks))
	for i := range wf.Tasks {
		t := &wf.Tasks[i]
		taskIDs = append(taskIDs, t.ID)
		tasksByID[t.ID] = t
	}

	specs := make([]flow.Spec, 0, len(wf.Flows))
	for _, f := range wf.Flows {
		specs = append(specs, flow.Spec{Source: f.Source, Target: f.Target})
	}
	edges := flow.ExpandFlows(specs)
	graph, err := flow.New(taskIDs, edges)
	if err != nil {
		return nil, err
	}
	if cycle, found := graph.DetectCycles(); found {
		return nil, core.NewErrorf(core.CodeCycleDetected, map[string]any{"cycle": cycle}, "workflow flow graph contains a cycle: %v", cycle)
	}

	dagTasks := make([]dagvalidate.Task, 0, len(wf.Tasks))
	for i := range wf.Tasks {
		t := &wf.Tasks[i]
		dagTasks = append(dagTasks, dagvalidate.Task{
			ID:             t.ID,
			Use:            t.Use,
			ForEachAlias:   t.ForEachAlias(),
			HasForEach:     t.ForEach != nil,
			TemplateFields: t.Action.TemplateFields(),
		})
	}
	if report := dagvalidate.ValidateUseWiring(dagTasks, graph); !report.OK() {
		return nil, report.Error()
	}

	if cfg.MaxConcurrentTasks <= 0 {
		cfg = DefaultConfig()
	}

	return &Runner{
		Workflow:  wf,
		Graph:     graph,
		Executor:  exec,
		Store:     datastore.New(),
		Log:       event.NewLog(),
		Config:    cfg,
		tasksByID: tasksByID,
		inFlight:  make(map[string]bool),
	}, nil
}

type taskOutcome struct {
	taskID string
	result datastore.Result
}

// Run drives the scheduling loop to completion: compute ready set, launch up
// to the concurrency cap, await completions, repeat until no ready or
// in-flight tasks remain. Returns a WorkflowError-shaped error on the first
// task failure (fail-fast) or on timeout/cancellation.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	r.Log.Emit(event.WorkflowStarted())

	ctx, cancel := context.WithTimeout(ctx, r.Config.MaxWorkflowDuration)

	// resultsCh is buffered to the concurrency cap so an in-flight task's
	// send never blocks once this loop has already returned; cancel runs
	// before wg.Wait() so every in-flight task is told to abort first,
	// rather than awaited against a context that is still live.
	resultsCh := make(chan taskOutcome, r.Config.MaxConcurrentTasks)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		ready := r.readySet()
		for _, taskID := range ready {
			if r.inFlightCount() >= r.Config.MaxConcurrentTasks {
				break
			}
			task := r.tasksByID[taskID]
			r.markInFlight(taskID, true)
			wg.Add(1)
			go func(t *workflow.Task) {
				defer wg.Done()
				r.runOne(ctx, t, resultsCh)
			}(task)
		}

		if r.inFlightCount() == 0 {
			break
		}

		select {
		case outcome := <-resultsCh:
			r.markInFlight(outcome.taskID, false)
			r.Store.Insert(outcome.taskID, outcome.result)
			r.completed++
			if outcome.result.Succeeded() {
				r.Log.Emit(event.TaskCompleted(outcome.taskID, outcome.result.Output, outcome.result.Duration))
			} else {
				r.Log.Emit(event.TaskFailed(outcome.taskID, outcome.result.Reason, outcome.result.Duration))
				reason := fmt.Sprintf("task %q failed: %s", outcome.taskID, outcome.result.Reason)
				r.Log.Emit(event.WorkflowError(reason))
				return core.NewErrorf(core.CodeExecution, map[string]any{"task_id": outcome.taskID}, "%s", reason)
			}
		case <-ctx.Done():
			reason := "cancelled"
			if ctx.Err() == context.DeadlineExceeded {
				reason = "workflow timeout exceeded"
			}
			r.Log.Emit(event.WorkflowError(reason))
			if ctx.Err() == context.DeadlineExceeded {
				return core.NewError(ctx.Err(), core.CodeWorkflowTimeout, nil)
			}
			return core.NewError(ctx.Err(), core.CodeWorkflowCancelled, nil)
		}
	}

	output := r.aggregateLeafOutputs()
	r.Log.Emit(event.WorkflowCompleted(r.completed, time.Since(start), output))
	return nil
}

// readySet returns logical task ids with no terminal result whose every
// flow-graph predecessor already has a terminal result.
func (r *Runner) readySet() []string {
	var ready []string
	for _, task := range r.Workflow.Tasks {
		if r.Store.Exists(task.ID) || r.isInFlight(task.ID) {
			continue
		}
		blocked := false
		for _, dep := range r.Graph.Dependencies(task.ID) {
			if !r.Store.Exists(dep) {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, task.ID)
		}
	}
	sort.Strings(ready)
	return ready
}

func (r *Runner) markInFlight(taskID string, inFlight bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inFlight {
		r.inFlight[taskID] = true
	} else {
		delete(r.inFlight, taskID)
	}
}

func (r *Runner) isInFlight(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[taskID]
}

func (r *Runner) inFlightCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

func (r *Runner) runOne(ctx context.Context, task *workflow.Task, resultsCh chan<- taskOutcome) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if r.Config.MaxTaskDuration > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, r.Config.MaxTaskDuration)
		defer cancel()
	}

	bindings, err := binding.FromWiringSpec(task.Use, r.Store)
	if err != nil {
		resultsCh <- taskOutcome{taskID: task.ID, result: datastore.Result{Status: core.StatusFailed, Reason: err.Error()}}
		return
	}

	r.Log.Emit(event.TaskStarted(task.ID, task.Use))

	wfDefaults := executor.WorkflowDefaults{Provider: r.Workflow.Provider, Model: r.Workflow.Model}

	if task.ForEach != nil {
		resultsCh <- taskOutcome{taskID: task.ID, result: r.runForEach(taskCtx, task, wfDefaults, bindings)}
		return
	}
	if task.Decompose != nil {
		resultsCh <- taskOutcome{taskID: task.ID, result: r.runDecompose(taskCtx, task, wfDefaults, bindings)}
		return
	}

	result := r.Executor.Execute(taskCtx, task, wfDefaults, bindings, r.Store)
	resultsCh <- taskOutcome{taskID: task.ID, result: result}
}

// Output returns the aggregated output of every final (zero-out-degree)
// task, the workflow's overall result. Valid only after Run returns.
func (r *Runner) Output() map[string]any {
	return r.aggregateLeafOutputs()
}

// aggregateLeafOutputs collects the outputs of every final (zero-out-degree)
// task into a map, the workflow's overall result.
func (r *Runner) aggregateLeafOutputs() map[string]any {
	output := make(map[string]any)
	for _, taskID := range r.Graph.FinalTasks() {
		if result, ok := r.Store.Get(taskID); ok {
			output[taskID] = result.Output
		}
	}
	return output
}

// resolveArraySource resolves a for_each/decompose Static source expression:
// either a literal JSON array or a `{{use...}}` template reference that must
// resolve to an array.
func resolveArraySource(expr string, bindings *binding.ResolvedBindings, store *datastore.Store) ([]any, error) {
	var literal []any
	if err := json.Unmarshal([]byte(expr), &literal); err == nil {
		return literal, nil
	}
	resolved, err := tplengine.Resolve(expr, bindings, store)
	if err != nil {
		return nil, err
	}
	var arr []any
	if err := json.Unmarshal([]byte(resolved), &arr); err != nil {
		return nil, core.NewErrorf(core.CodeForEachEmpty, map[string]any{"source": expr}, "for_each/decompose source did not resolve to a JSON array")
	}
	return arr, nil
}
