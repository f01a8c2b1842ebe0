// Package dagvalidate cross-checks a workflow's use-wiring and template
// references against its flow graph before a run is allowed to start.
package dagvalidate

import (
	"strings"

	"github.com/nika/nika/engine/binding"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/flow"
	"github.com/nika/nika/engine/identifier"
	"github.com/nika/nika/engine/tplengine"
)

// Task is the minimal view dagvalidate needs of a workflow task: its id,
// its use-wiring spec, its for_each loop-variable alias (if any), and the
// set of templated string fields reachable from its action.
type Task struct {
	ID             string
	Use            binding.WiringSpec
	ForEachAlias   string
	HasForEach     bool
	TemplateFields []string
}

// Report collects every validation failure found across a workflow, rather
// than aborting on the first: a run is rejected with a single, comprehensive
// report.
type Report struct {
	Errors []error
}

// OK reports whether no errors were collected.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Error renders the report as a single combined error, or nil if empty.
func (r *Report) Error() error {
	if r.OK() {
		return nil
	}
	return core.NewErrorf(
		core.CodeInvalidDAG,
		map[string]any{"count": len(r.Errors)},
		"%d validation error(s); see report for detail", len(r.Errors),
	)
}

// ValidateUseWiring checks every task's use: entries against the flow
// graph (source exists, not self-referential, upstream) and every
// templated field against the task's declared aliases. All errors found are
// collected into one Report rather than stopping at the first.
func ValidateUseWiring(tasks []Task, graph *flow.Graph) *Report {
	report := &Report{}
	allIDs := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		allIDs[t.ID] = true
	}

	for _, t := range tasks {
		validateTaskWiring(t, allIDs, graph, report)
		validateTaskTemplates(t, report)
	}
	return report
}

func validateTaskWiring(t Task, allIDs map[string]bool, graph *flow.Graph, report *Report) {
	for alias, entry := range t.Use {
		if entry.Kind == binding.KindBatch {
			// Batch entries are keyed by task path at the WiringSpec level
			// ("task.path": [fields]); only the leading task-id segment is a
			// source reference, matching datastore.Store.ResolvePath's split.
			fromTask, _, _ := strings.Cut(alias, ".")
			validateSource(alias, fromTask, t.ID, allIDs, graph, report)
			continue
		}
		fromTask := entry.SourceTaskID()
		if fromTask == "" {
			continue
		}
		validateSource(alias, fromTask, t.ID, allIDs, graph, report)
	}
}

func validateSource(alias, fromTask, taskID string, allIDs map[string]bool, graph *flow.Graph, report *Report) {
	if err := identifier.Validate(fromTask); err != nil {
		report.Errors = append(report.Errors, err)
		return
	}
	if fromTask == taskID {
		report.Errors = append(report.Errors, core.NewErrorf(
			core.CodeUseCircularDep,
			map[string]any{"alias": alias, "from_task": fromTask, "task_id": taskID},
			"use.%s in task %q self-references", alias, taskID,
		))
		return
	}
	if !allIDs[fromTask] {
		report.Errors = append(report.Errors, core.NewErrorf(
			core.CodeUseUnknownTask,
			map[string]any{"alias": alias, "from_task": fromTask, "task_id": taskID},
			"use.%s in task %q references unknown task %q", alias, taskID, fromTask,
		))
		return
	}
	if !graph.HasPath(fromTask, taskID) {
		report.Errors = append(report.Errors, core.NewErrorf(
			core.CodeUseNotUpstream,
			map[string]any{"alias": alias, "from_task": fromTask, "task_id": taskID},
			"use.%s in task %q references %q, which is not upstream", alias, taskID, fromTask,
		))
	}
}

func validateTaskTemplates(t Task, report *Report) {
	declared := make(map[string]bool, len(t.Use)+1)
	for alias := range t.Use {
		declared[alias] = true
	}
	if t.HasForEach {
		alias := t.ForEachAlias
		if alias == "" {
			alias = "item"
		}
		declared[alias] = true
	}
	for _, tmpl := range t.TemplateFields {
		if err := tplengine.ValidateRefs(tmpl, declared, t.ID); err != nil {
			report.Errors = append(report.Errors, err)
		}
	}
}
