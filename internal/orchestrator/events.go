package orchestrator

import "time"

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has started.
	EventRunStarted EventType = "run_started"
	// EventClassified indicates the request was classified.
	EventClassified EventType = "classified"
	// EventDecomposed indicates the request was split into a task graph.
	EventDecomposed EventType = "decomposed"
	// EventNodeQueued indicates a node became ready for execution.
	EventNodeQueued EventType = "node_queued"
	// EventNodeStarted indicates a node's agent began running.
	EventNodeStarted EventType = "node_started"
	// EventNodeCompleted indicates a node succeeded.
	EventNodeCompleted EventType = "node_completed"
	// EventNodeFailed indicates a node failed.
	EventNodeFailed EventType = "node_failed"
	// EventNodeSkipped indicates a node was skipped due to a failed ancestor.
	EventNodeSkipped EventType = "node_skipped"
	// EventRunDone indicates the run reached its final state.
	EventRunDone EventType = "run_done"
)

// Event is a progress notification emitted during a run. Consumers
// that fall behind lose events rather than stalling the scheduler.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run.
	RunID string
	// NodeID is the related graph node, if any.
	NodeID string
	// Message provides additional context.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event without blocking; if the buffer is full the
// event is dropped.
func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
	}
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}
