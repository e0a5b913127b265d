package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestRecordWritesJSONL(t *testing.T) {
	rec, err := New(t.TempDir(), "abc123")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec.Record(Event{Component: "orchestrator", Op: "classify", Detail: "simple"})
	rec.Record(Event{Component: "agent", Op: "node_done", NodeID: "n1", Duration: time.Second})
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(rec.Path())
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSON line: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Op != "classify" || events[1].NodeID != "n1" {
		t.Errorf("unexpected events: %+v", events)
	}
	if events[0].Time.IsZero() {
		t.Error("expected Time to default to now")
	}
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.Record(Event{Component: "agent", Op: "noop"})
	if err := rec.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if rec.Path() != "" {
		t.Errorf("nop recorder has path %q", rec.Path())
	}
}

func TestNilRecorderSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(Event{Op: "ignored"})
	if err := rec.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestRecordAfterCloseDropped(t *testing.T) {
	rec, err := New(t.TempDir(), "r1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Must not panic or write.
	rec.Record(Event{Op: "late"})
}
