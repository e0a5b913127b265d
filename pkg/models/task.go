package models

import (
	"encoding/json"
	"time"
)

// NodeStatus represents the current state of a task node in the graph.
type NodeStatus string

const (
	// NodePending indicates the node is waiting on unresolved dependencies.
	NodePending NodeStatus = "pending"
	// NodeReady indicates every dependency has succeeded and the node can run.
	NodeReady NodeStatus = "ready"
	// NodeRunning indicates an agent is executing the node.
	NodeRunning NodeStatus = "running"
	// NodeSucceeded indicates the node completed successfully.
	NodeSucceeded NodeStatus = "succeeded"
	// NodeFailed indicates the node's agent run failed.
	NodeFailed NodeStatus = "failed"
	// NodeSkipped indicates the node was never run because an ancestor failed.
	NodeSkipped NodeStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodePending, NodeReady, NodeRunning, NodeSucceeded, NodeFailed, NodeSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeSucceeded, NodeFailed, NodeSkipped:
		return true
	default:
		return false
	}
}

// TaskNode is a unit of work inside a dependency graph.
// Nodes are owned by the graph that contains them and are mutated only by
// the orchestrator's scheduling loop.
type TaskNode struct {
	// ID is the unique identifier of the node within its graph.
	ID string `json:"id"`
	// Description is what the node's agent is asked to do.
	Description string `json:"description"`
	// DependsOn lists node IDs that must succeed before this node runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Priority orders simultaneously-ready nodes; higher runs first.
	Priority int `json:"priority"`
	// Status is the current scheduling state of the node.
	Status NodeStatus `json:"status"`
	// AgentKind is the task kind used to select the agent variant.
	AgentKind TaskKind `json:"agent_kind"`
	// Result holds the agent's result once the node reaches a terminal state.
	Result *AgentResult `json:"result,omitempty"`
	// SkipCause names the failed ancestor when Status is NodeSkipped.
	SkipCause string `json:"skip_cause,omitempty"`
	// CreatedAt is when the node was created during decomposition.
	CreatedAt time.Time `json:"created_at"`
}

// ResultStatus represents the outcome of a single agent run.
type ResultStatus string

const (
	// ResultComplete indicates the agent finished the task.
	ResultComplete ResultStatus = "complete"
	// ResultFailed indicates the agent could not finish the task.
	ResultFailed ResultStatus = "failed"
	// ResultNeedsMoreWork indicates the agent stopped before the task was done.
	ResultNeedsMoreWork ResultStatus = "needs_more_work"
)

// Valid returns true if the status is a known value.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultComplete, ResultFailed, ResultNeedsMoreWork:
		return true
	default:
		return false
	}
}

// ToolOutcome represents how a single tool invocation ended.
type ToolOutcome string

const (
	// ToolSuccess indicates the tool ran and returned output.
	ToolSuccess ToolOutcome = "success"
	// ToolFailure indicates the tool ran and reported an error.
	ToolFailure ToolOutcome = "failure"
	// ToolTimedOut indicates the tool exceeded its deadline.
	ToolTimedOut ToolOutcome = "timeout"
)

// ToolInvocation is the audit record of one tool call made by an agent.
// Records are append-only and owned by the agent run that created them.
type ToolInvocation struct {
	// Tool is the name of the invoked tool.
	Tool string `json:"tool"`
	// Arguments is the raw JSON argument payload passed to the tool.
	Arguments json.RawMessage `json:"arguments,omitempty"`
	// Outcome is how the invocation ended.
	Outcome ToolOutcome `json:"outcome"`
	// Output is the tool's output, or its error text on failure.
	Output string `json:"output,omitempty"`
	// Duration is how long the invocation took.
	Duration time.Duration `json:"duration"`
}

// AgentResult is what an agent produces at the end of one task run.
// It is consumed once by the orchestrator and then immutable.
type AgentResult struct {
	// Status is the run outcome.
	Status ResultStatus `json:"status"`
	// Output is the agent's final text output.
	Output string `json:"output,omitempty"`
	// ToolCalls records every tool invocation made during the run, in order.
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	// Error describes the failure when Status is ResultFailed.
	Error string `json:"error,omitempty"`
	// TokensIn is the total input tokens consumed by the run.
	TokensIn int64 `json:"tokens_in"`
	// TokensOut is the total output tokens produced by the run.
	TokensOut int64 `json:"tokens_out"`
	// Iterations is the number of model calls the run made.
	Iterations int `json:"iterations"`
	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// RunStatus represents the final state of an orchestration run.
type RunStatus string

const (
	// RunCompleted indicates every node succeeded.
	RunCompleted RunStatus = "completed"
	// RunPartialSuccess indicates at least one node succeeded and at
	// least one other failed or was skipped.
	RunPartialSuccess RunStatus = "partial_success"
	// RunFailed indicates no node succeeded.
	RunFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunCompleted, RunPartialSuccess, RunFailed:
		return true
	default:
		return false
	}
}

// NodeResult pairs a node ID with the agent result it produced.
type NodeResult struct {
	// NodeID is the graph node the result belongs to.
	NodeID string `json:"node_id"`
	// Result is the agent result, nil for skipped nodes.
	Result *AgentResult `json:"result,omitempty"`
}

// SkippedNode names a node that never ran and the ancestor that caused it.
type SkippedNode struct {
	// NodeID is the skipped node.
	NodeID string `json:"node_id"`
	// FailedAncestor is the failed node the skip cascaded from.
	FailedAncestor string `json:"failed_ancestor"`
}

// AggregatedResult is the caller-facing result of an orchestration run.
type AggregatedResult struct {
	// Status distinguishes full, partial, and failed runs.
	Status RunStatus `json:"status"`
	// PerNode lists node results in graph insertion order.
	PerNode []NodeResult `json:"per_node"`
	// Skipped enumerates skipped nodes with their failed ancestors.
	Skipped []SkippedNode `json:"skipped,omitempty"`
	// Summary is the combined output of all succeeded nodes.
	Summary string `json:"summary"`
}
