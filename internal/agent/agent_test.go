package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/internal/tools"
	"github.com/clayworks/clay/pkg/models"
)

// mockProvider replays a scripted sequence of completions and errors.
type mockProvider struct {
	mu       sync.Mutex
	steps    []mockStep
	requests []provider.Request
}

type mockStep struct {
	completion *provider.Completion
	err        error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req provider.Request) (*provider.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("mock exhausted after %d calls", len(m.requests))
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.completion, step.err
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func answer(text string) *provider.Completion {
	return &provider.Completion{
		Blocks:     []provider.Block{{Type: provider.BlockText, Text: text}},
		StopReason: provider.StopEndTurn,
		TokensIn:   10,
		TokensOut:  5,
	}
}

func toolCall(id, name, args string) *provider.Completion {
	return &provider.Completion{
		Blocks: []provider.Block{
			{Type: provider.BlockToolUse, ToolID: id, ToolName: name, ToolInput: json.RawMessage(args)},
		},
		StopReason: provider.StopToolUse,
		TokensIn:   10,
		TokensOut:  5,
	}
}

// echoTool returns its text argument.
type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{Name: "echo", Description: "echoes input"}
}
func (echoTool) Validate(json.RawMessage) error { return nil }
func (echoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}
	return p.Text, nil
}

// stallTool blocks until its context is done.
type stallTool struct{}

func (stallTool) Name() string { return "stall" }
func (stallTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{Name: "stall", Description: "blocks forever"}
}
func (stallTool) Validate(json.RawMessage) error { return nil }
func (stallTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// flakyTool stalls on its first call and succeeds afterwards.
type flakyTool struct {
	calls atomic.Int32
}

func (t *flakyTool) Name() string { return "flaky" }
func (t *flakyTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{Name: "flaky", Description: "stalls once"}
}
func (t *flakyTool) Validate(json.RawMessage) error { return nil }
func (t *flakyTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	if t.calls.Add(1) == 1 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "ok", nil
}

func testAgent(t *testing.T, p provider.Provider, toolTimeout time.Duration) *Agent {
	t.Helper()
	registry := tools.NewRegistry()
	for _, tool := range []tools.Tool{echoTool{}, stallTool{}} {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return New(Config{
		Providers:     map[string]provider.Provider{"mock": p},
		Invoker:       tools.NewInvoker(registry, toolTimeout),
		MaxIterations: 5,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	})
}

func task(desc string) Task {
	return Task{
		NodeID:      "n1",
		Description: desc,
		Kind:        models.KindGeneral,
		Binding:     models.ModelBinding{Provider: "mock", Model: "test-model", MaxTokens: 1024},
	}
}

func TestRunTaskDirectAnswer(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{{completion: answer("4")}}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("what is 2+2?"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.ResultComplete {
		t.Errorf("status = %s, want complete", result.Status)
	}
	if result.Output != "4" {
		t.Errorf("output = %q, want 4", result.Output)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", result.Iterations)
	}
	if result.TokensIn != 10 || result.TokensOut != 5 {
		t.Errorf("tokens = (%d, %d), want (10, 5)", result.TokensIn, result.TokensOut)
	}
}

func TestRunTaskToolRoundTrip(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{
		{completion: toolCall("t1", "echo", `{"text":"pong"}`)},
		{completion: answer("done")},
	}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("use the echo tool"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.ResultComplete {
		t.Errorf("status = %s, want complete", result.Status)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}
	if result.ToolCalls[0].Outcome != models.ToolSuccess {
		t.Errorf("tool outcome = %s, want success", result.ToolCalls[0].Outcome)
	}

	// The second request must carry the tool result back to the model.
	second := mock.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != provider.RoleUser || last.Blocks[0].Type != provider.BlockToolResult {
		t.Errorf("expected trailing tool_result message, got %+v", last)
	}
	if last.Blocks[0].Text != "pong" {
		t.Errorf("tool result text = %q, want pong", last.Blocks[0].Text)
	}
}

func TestRunTaskIterationLimit(t *testing.T) {
	var steps []mockStep
	for i := 0; i < 10; i++ {
		steps = append(steps, mockStep{completion: toolCall(fmt.Sprintf("t%d", i), "echo", `{"text":"x"}`)})
	}
	mock := &mockProvider{steps: steps}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("loop forever"))
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected ErrIterationLimit, got %v", err)
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if result.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", result.Iterations)
	}
}

func TestRunTaskTransientRetry(t *testing.T) {
	transient := &provider.Error{Provider: "mock", Transient: true, Err: errors.New("overloaded")}
	mock := &mockProvider{steps: []mockStep{
		{err: transient},
		{err: transient},
		{completion: answer("recovered")},
	}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("flaky provider"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Output != "recovered" {
		t.Errorf("output = %q, want recovered", result.Output)
	}
	if mock.callCount() != 3 {
		t.Errorf("calls = %d, want 3", mock.callCount())
	}
	// Retries within one model call do not consume iterations.
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", result.Iterations)
	}
}

func TestRunTaskPermanentErrorNoRetry(t *testing.T) {
	permanent := &provider.Error{Provider: "mock", Transient: false, Err: errors.New("bad request")}
	mock := &mockProvider{steps: []mockStep{{err: permanent}, {completion: answer("never")}}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("doomed"))
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *provider.Error
	if !errors.As(err, &perr) || perr.Transient {
		t.Errorf("expected permanent provider error, got %v", err)
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if mock.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", mock.callCount())
	}
}

func TestRunTaskCancellation(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{{completion: answer("ignored")}}}
	a := testAgent(t, mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := a.RunTask(ctx, task("cancelled before start"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if mock.callCount() != 0 {
		t.Errorf("calls = %d, want 0", mock.callCount())
	}
}

func TestRunTaskToolTimeout(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{
		{completion: toolCall("t1", "stall", `{}`)},
		{completion: answer("never reached")},
	}}
	a := testAgent(t, mock, 10*time.Millisecond)

	result, err := a.RunTask(context.Background(), task("stall out"))
	if !errors.Is(err, tools.ErrToolTimeout) {
		t.Fatalf("expected ErrToolTimeout, got %v", err)
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	// The call is retried once; both attempts appear in the audit trail.
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(result.ToolCalls))
	}
	for i, call := range result.ToolCalls {
		if call.Outcome != models.ToolTimedOut {
			t.Errorf("tool call %d outcome = %s, want timeout", i, call.Outcome)
		}
	}
}

func TestRunTaskToolTimeoutRetrySucceeds(t *testing.T) {
	flaky := &flakyTool{}
	mock := &mockProvider{steps: []mockStep{
		{completion: toolCall("t1", "flaky", `{}`)},
		{completion: answer("done")},
	}}

	registry := tools.NewRegistry()
	if err := registry.Register(flaky); err != nil {
		t.Fatal(err)
	}
	a := New(Config{
		Providers:     map[string]provider.Provider{"mock": mock},
		Invoker:       tools.NewInvoker(registry, 10*time.Millisecond),
		MaxIterations: 5,
	})

	result, err := a.RunTask(context.Background(), task("flaky tool"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.ResultComplete {
		t.Errorf("status = %s, want complete", result.Status)
	}
	// The first attempt's timeout stays on the record; the retry is a
	// separate invocation.
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(result.ToolCalls))
	}
	if result.ToolCalls[0].Outcome != models.ToolTimedOut {
		t.Errorf("first outcome = %s, want timeout", result.ToolCalls[0].Outcome)
	}
	if result.ToolCalls[1].Outcome != models.ToolSuccess || result.ToolCalls[1].Output != "ok" {
		t.Errorf("second outcome = %s/%q, want success/ok", result.ToolCalls[1].Outcome, result.ToolCalls[1].Output)
	}
	if got := flaky.calls.Load(); got != 2 {
		t.Errorf("tool executions = %d, want 2", got)
	}
}

func TestRunTaskUnknownTool(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{
		{completion: toolCall("t1", "nonexistent", `{}`)},
	}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("bad tool"))
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
}

func TestRunTaskMaxTokensNeedsMoreWork(t *testing.T) {
	mock := &mockProvider{steps: []mockStep{{completion: &provider.Completion{
		Blocks:     []provider.Block{{Type: provider.BlockText, Text: "partial"}},
		StopReason: provider.StopMaxTokens,
	}}}}
	a := testAgent(t, mock, time.Second)

	result, err := a.RunTask(context.Background(), task("long answer"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.ResultNeedsMoreWork {
		t.Errorf("status = %s, want needs_more_work", result.Status)
	}
	if result.Output != "partial" {
		t.Errorf("output = %q, want partial", result.Output)
	}
}

func TestRunTaskUnknownProvider(t *testing.T) {
	a := testAgent(t, &mockProvider{}, time.Second)

	tk := task("no backend")
	tk.Binding.Provider = "missing"
	result, err := a.RunTask(context.Background(), tk)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if result.Status != models.ResultFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
}
