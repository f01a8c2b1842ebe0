// Package event implements the append-only, ordered event log and its
// accompanying NDJSON trace sink.
package event

import "time"

// Kind names the variant of an EventKind envelope.
type Kind string

const (
	KindWorkflowStarted     Kind = "workflow_started"
	KindWorkflowCompleted   Kind = "workflow_completed"
	KindWorkflowError       Kind = "workflow_error"
	KindTaskStarted         Kind = "task_started"
	KindTaskProgress        Kind = "task_progress"
	KindTaskCompleted       Kind = "task_completed"
	KindTaskFailed          Kind = "task_failed"
	KindAgentTurn           Kind = "agent_turn"
	KindMCPConnected        Kind = "mcp_connected"
	KindMCPError            Kind = "mcp_error"
	KindAgentSpawned        Kind = "agent_spawned"
	KindContextSummarized   Kind = "context_summarized"
)

// AgentTurnKind discriminates the phase of a single agent turn.
type AgentTurnKind string

const (
	AgentTurnStarted  AgentTurnKind = "started"
	AgentTurnThinking AgentTurnKind = "thinking"
	AgentTurnToolUse  AgentTurnKind = "tool_use"
	AgentTurnResponse AgentTurnKind = "response"
)

// AgentTurnMetadata carries optional usage/content detail for an agent turn.
type AgentTurnMetadata struct {
	InputTokens    int    `json:"input_tokens,omitempty"`
	OutputTokens   int    `json:"output_tokens,omitempty"`
	ThinkingText   string `json:"thinking_text,omitempty"`
	ResponseText   string `json:"response_text,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
}

// EventKind is a flat, tagged-union envelope payload. Only the fields
// relevant to Type are populated; the rest are left at their zero value and
// omitted from JSON.
type EventKind struct {
	Type Kind `json:"type"`

	// workflow_started / workflow_completed / workflow_error
	TasksCompleted int           `json:"tasks_completed,omitempty"`
	TotalDuration  time.Duration `json:"total_duration_ms,omitempty"`
	Output         any           `json:"output,omitempty"`
	Reason         string        `json:"reason,omitempty"`

	// task_started / task_progress / task_completed / task_failed
	TaskID   string        `json:"task_id,omitempty"`
	Inputs   any           `json:"inputs,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`

	// agent_turn
	AgentTurnKind AgentTurnKind      `json:"agent_turn_kind,omitempty"`
	Metadata      *AgentTurnMetadata `json:"metadata,omitempty"`

	// mcp_connected / mcp_error
	Server string   `json:"server,omitempty"`
	Tools  []string `json:"tools,omitempty"`

	// agent_spawned
	Parent string `json:"parent,omitempty"`
	Child  string `json:"child,omitempty"`
	Depth  int    `json:"depth,omitempty"`

	// context_summarized
	Summary string `json:"summary,omitempty"`
}

// Event is one append-only envelope: a monotone id, a millisecond timestamp,
// and its tagged-union payload.
type Event struct {
	ID          uint64    `json:"id"`
	TimestampMs int64     `json:"timestamp_ms"`
	Kind        EventKind `json:"kind"`
}

func WorkflowStarted() EventKind {
	return EventKind{Type: KindWorkflowStarted}
}

func WorkflowCompleted(tasksCompleted int, totalDuration time.Duration, output any) EventKind {
	return EventKind{Type: KindWorkflowCompleted, TasksCompleted: tasksCompleted, TotalDuration: totalDuration, Output: output}
}

func WorkflowError(reason string) EventKind {
	return EventKind{Type: KindWorkflowError, Reason: reason}
}

func TaskStarted(taskID string, inputs any) EventKind {
	return EventKind{Type: KindTaskStarted, TaskID: taskID, Inputs: inputs}
}

func TaskProgress(taskID string) EventKind {
	return EventKind{Type: KindTaskProgress, TaskID: taskID}
}

func TaskCompleted(taskID string, output any, duration time.Duration) EventKind {
	return EventKind{Type: KindTaskCompleted, TaskID: taskID, Output: output, Duration: duration}
}

func TaskFailed(taskID string, reason string, duration time.Duration) EventKind {
	return EventKind{Type: KindTaskFailed, TaskID: taskID, Reason: reason, Duration: duration}
}

func AgentTurn(taskID string, turnKind AgentTurnKind, metadata *AgentTurnMetadata) EventKind {
	return EventKind{Type: KindAgentTurn, TaskID: taskID, AgentTurnKind: turnKind, Metadata: metadata}
}

func MCPConnected(server string, tools []string) EventKind {
	return EventKind{Type: KindMCPConnected, Server: server, Tools: tools}
}

func MCPError(server string, reason string) EventKind {
	return EventKind{Type: KindMCPError, Server: server, Reason: reason}
}

func AgentSpawned(parent, child string, depth int) EventKind {
	return EventKind{Type: KindAgentSpawned, Parent: parent, Child: child, Depth: depth}
}

func ContextSummarized(taskID, summary string) EventKind {
	return EventKind{Type: KindContextSummarized, TaskID: taskID, Summary: summary}
}
