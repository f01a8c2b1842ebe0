package core

// NIKA error codes. Ranges, per the external error taxonomy:
//
//	050-059 identifier/format
//	060-069 output (invalid JSON, schema failed)
//	070-079 use-block (duplicate alias, unknown alias, null, traversal, template)
//	080-089 DAG (unknown source, not upstream, circular, undeclared template ref)
//	090-099 JSONPath (unsupported, no match, non-JSON source)
//	100-108 MCP (start, protocol, not connected, tool error, validation, schema)
//	110-119 Agent (turn/budget limits)
//	010-019 workflow/schema
const (
	CodeYamlParse  = "NIKA-001"
	CodeTemplate   = "NIKA-002"
	CodeProvider   = "NIKA-003"
	CodeExecution  = "NIKA-004"
	CodeIO         = "NIKA-005"
	CodeInvalidDAG = "NIKA-020"

	CodeInvalidSchema = "NIKA-010"

	CodeInvalidPath  = "NIKA-050"
	CodeTaskNotFound = "NIKA-051"
	CodePathNotFound = "NIKA-052"
	CodeInvalidID    = "NIKA-055"

	CodeInvalidJSON  = "NIKA-060"
	CodeSchemaFailed = "NIKA-061"

	CodeDuplicateAlias    = "NIKA-070"
	CodeUnknownAlias      = "NIKA-071"
	CodeNullValue         = "NIKA-072"
	CodeInvalidTraversal  = "NIKA-073"
	CodeTemplateParse     = "NIKA-074"
	CodeMutuallyExclusive = "NIKA-075"
	CodeRequiredField     = "NIKA-076"

	CodeUseUnknownTask  = "NIKA-080"
	CodeUseNotUpstream  = "NIKA-081"
	CodeUseCircularDep  = "NIKA-082"
	CodeTemplateUndecl  = "NIKA-083"
	CodeForEachEmpty    = "NIKA-084"
	CodeCycleDetected   = "NIKA-085"
	CodeUnknownFlowNode = "NIKA-086"

	CodeJSONPathUnsupported = "NIKA-090"
	CodeJSONPathNoMatch     = "NIKA-091"
	CodeJSONPathNonJSON     = "NIKA-092"

	CodeMcpStartError       = "NIKA-100"
	CodeMcpProtocolError    = "NIKA-101"
	CodeMcpNotConnected     = "NIKA-102"
	CodeMcpToolError        = "NIKA-103"
	CodeMcpResourceError    = "NIKA-104"
	CodeMcpTimeout          = "NIKA-105"
	CodeMcpDisconnectError  = "NIKA-106"
	CodeMcpValidationFailed = "NIKA-107"
	CodeMcpSchemaError      = "NIKA-108"

	CodeAgentMaxTurns     = "NIKA-110"
	CodeAgentEmptyPrompt  = "NIKA-111"
	CodeAgentTokenBudget  = "NIKA-112"
	CodeAgentDepthLimit   = "NIKA-113"
	CodeWorkflowTimeout   = "NIKA-120"
	CodeWorkflowCancelled = "NIKA-121"

	CodeProviderUnavailable = "NIKA-130"
)

// suggestions maps every NIKA code to a one-line, actionable fix suggestion.
// Grounded on the original implementation's FixSuggestion trait.
var suggestions = map[string]string{
	CodeYamlParse:  "Check YAML syntax: indentation and quoting",
	CodeTemplate:   "Use {{use.alias}} format with a use: block",
	CodeProvider:   "Check the provider configuration and that a Provider is registered",
	CodeExecution:  "Check command/URL is valid",
	CodeIO:         "Check file path and permissions",
	CodeInvalidDAG: "Remove the cycle; every task must be reachable without revisiting itself",

	CodeInvalidSchema: "Use a recognized schema tag such as nika/workflow@0.1",

	CodeInvalidPath:  "Use format: task_id.field.subfield",
	CodeTaskNotFound: "Verify task_id exists and has run successfully",
	CodePathNotFound: "Add default: value or ensure task outputs JSON with format: json",
	CodeInvalidID:    "Task ids must match [a-z][a-z0-9_]*",

	CodeInvalidJSON:  "Ensure output is valid JSON",
	CodeSchemaFailed: "Fix output to match the declared schema",

	CodeDuplicateAlias:    "Use unique alias names in the use: block",
	CodeUnknownAlias:      "Declare the alias in use: block before referencing it in templates",
	CodeNullValue:         "Provide a default value or ensure the upstream task returns non-null",
	CodeInvalidTraversal:  "Check the path - you're trying to access a field on a non-object value",
	CodeTemplateParse:     "Check template syntax: {{use.alias}} or {{use.alias.field}}",
	CodeMutuallyExclusive: "Specify exactly one of the mutually exclusive fields",
	CodeRequiredField:     "Provide the required field",

	CodeUseUnknownTask:  "Verify the task_id exists in your workflow",
	CodeUseNotUpstream:  "Add a flow from the source task to this task, or use a different source",
	CodeUseCircularDep:  "Remove the circular dependency - tasks cannot depend on themselves",
	CodeTemplateUndecl:  "Declare the alias in this task's use: block",
	CodeForEachEmpty:    "for_each requires a non-empty array",
	CodeCycleDetected:   "Break the cycle in flows:",
	CodeUnknownFlowNode: "flows: reference a task id that is not declared in tasks:",

	CodeJSONPathUnsupported: "Use simple paths like $.field.subfield or $.array[0].field",
	CodeJSONPathNoMatch:     "Check the path exists in the source task's output",
	CodeJSONPathNonJSON:     "Ensure source task has output: { format: json }",

	CodeMcpStartError:       "Check the command/args for the MCP server are correct and executable",
	CodeMcpProtocolError:    "Check the MCP server implements JSON-RPC 2.0 correctly",
	CodeMcpNotConnected:     "Connect to the MCP server before calling tools or reading resources",
	CodeMcpToolError:        "Check the tool name and parameters against the server's schema",
	CodeMcpResourceError:    "Check the resource URI is valid and readable",
	CodeMcpTimeout:          "Increase the deadline or check the server is responsive",
	CodeMcpDisconnectError:  "The server process may already have exited; safe to ignore",
	CodeMcpValidationFailed: "Fix the listed parameter errors before retrying",
	CodeMcpSchemaError:      "Check the tool's input_schema is valid JSON Schema",

	CodeAgentMaxTurns:     "max_turns must be between 1 and 100",
	CodeAgentEmptyPrompt:  "Agent tasks require a non-empty prompt",
	CodeAgentTokenBudget:  "token_budget must be greater than 0 when set",
	CodeAgentDepthLimit:   "depth_limit must be between 1 and 10",
	CodeWorkflowTimeout:   "Increase the workflow deadline or reduce task durations",
	CodeWorkflowCancelled: "The run was cancelled by the caller",

	CodeProviderUnavailable: "Register a Provider implementation for this name, or use \"mock\"",
}

// SuggestionFor returns the fix suggestion registered for code, or an empty
// string if code is unrecognized.
func SuggestionFor(code string) string {
	return suggestions[code]
}
