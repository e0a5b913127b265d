// Package trace records what happened during an orchestration run:
// every scheduling decision, model call, and tool invocation, written
// as one JSON line per event.
package trace

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one traced occurrence within a run.
type Event struct {
	// Time is when the event happened.
	Time time.Time `json:"time"`
	// Component is the subsystem that emitted the event
	// (e.g. "orchestrator", "agent", "tools").
	Component string `json:"component"`
	// Op is the operation name (e.g. "classify", "route", "node_start").
	Op string `json:"op"`
	// NodeID is the graph node the event relates to, if any.
	NodeID string `json:"node_id,omitempty"`
	// Detail is free-form context for the event.
	Detail string `json:"detail,omitempty"`
	// Duration is how long the operation took, for completion events.
	Duration time.Duration `json:"duration,omitempty"`
	// Err is the error text for failure events.
	Err string `json:"err,omitempty"`
}

// Recorder writes run events to a JSONL file. A nil or disabled
// Recorder is safe to use; Record becomes a no-op. Record never fails
// the caller: a write error is logged once and the recorder disables
// itself.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	runID   string
	enabled bool
	warned  bool
}

// New creates a Recorder writing to dir/run-<runID>.jsonl.
func New(dir, runID string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.jsonl", runID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &Recorder{file: file, path: path, runID: runID, enabled: true}, nil
}

// Nop returns a disabled Recorder.
func Nop() *Recorder {
	return &Recorder{}
}

// Path returns the trace file path, empty for a disabled recorder.
func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// RunID returns the run this recorder belongs to.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Record writes one event. The event's Time defaults to now.
func (r *Recorder) Record(ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		r.disable(fmt.Errorf("marshal event: %w", err))
		return
	}
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		r.disable(fmt.Errorf("write event: %w", err))
	}
}

// disable turns tracing off after a write failure. Caller holds r.mu.
func (r *Recorder) disable(err error) {
	r.enabled = false
	if !r.warned {
		r.warned = true
		log.Printf("[trace] disabling trace for run %s: %v", r.runID, err)
	}
}

// Close flushes and closes the trace file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
