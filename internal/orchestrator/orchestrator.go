// Package orchestrator coordinates a run end to end: classification,
// routing, decomposition, and the scheduling of agents over the task
// graph.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clayworks/clay/internal/agent"
	"github.com/clayworks/clay/internal/classify"
	"github.com/clayworks/clay/internal/graph"
	"github.com/clayworks/clay/internal/history"
	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/internal/router"
	"github.com/clayworks/clay/internal/state"
	"github.com/clayworks/clay/internal/trace"
	"github.com/clayworks/clay/pkg/models"
)

// singleNodeID is the node ID used for runs that need no decomposition.
const singleNodeID = "task"

// Config contains the dependencies and settings for an Orchestrator.
type Config struct {
	// Classifier produces task profiles from request text.
	Classifier *classify.Classifier
	// Router resolves profiles to model bindings.
	Router *router.Router
	// Providers maps provider names to backends.
	Providers map[string]provider.Provider
	// History is the conversation store; may be nil.
	History history.Store
	// State persists runs; may be nil.
	State *state.DB
	// TraceEnabled toggles per-run trace recording.
	TraceEnabled bool
	// TraceDir is where trace files are written.
	TraceDir string
	// WorkDir is the directory agent tools operate in.
	WorkDir string
	// MaxWorkers bounds concurrently running agents.
	MaxWorkers int
	// RecentTurns is how many history turns feed the classifier.
	RecentTurns int
	// MaxIterations caps model calls per task.
	MaxIterations int
	// RetryAttempts is the transient provider error retry count.
	RetryAttempts int
	// RetryBackoff is the initial retry backoff.
	RetryBackoff time.Duration
	// ToolTimeout is the per-invocation tool deadline.
	ToolTimeout time.Duration
	// NewAgents overrides agent registry construction; nil uses
	// agent.DefaultRegistry.
	NewAgents func(deps agent.Deps) *agent.Registry
}

// Orchestrator runs requests: simple ones as a single agent task,
// compound ones as a dependency graph executed by a bounded worker
// pool.
type Orchestrator struct {
	cfg        Config
	decomposer *Decomposer
	events     chan Event
}

// New creates an Orchestrator from the given config.
func New(cfg Config) *Orchestrator {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 4
	}
	if cfg.NewAgents == nil {
		cfg.NewAgents = agent.DefaultRegistry
	}
	return &Orchestrator{
		cfg:        cfg,
		decomposer: NewDecomposer(cfg.Providers),
		events:     make(chan Event, 64),
	}
}

// Run executes one request to completion. The returned error is
// non-nil only when the run could not produce a result at all: no
// provider for a needed tier, a failed decomposition, or cancellation.
// Task failures inside the run are reported through the aggregated
// result's status.
func (o *Orchestrator) Run(ctx context.Context, request string) (*models.AggregatedResult, error) {
	runID := uuid.New().String()[:8]
	tracer := o.newTracer(runID)
	defer tracer.Close()

	o.emit(Event{Type: EventRunStarted, RunID: runID, Message: request})
	start := time.Now()

	profile := o.cfg.Classifier.Classify(request, o.recentTurns(ctx))
	tracer.Record(trace.Event{
		Component: "orchestrator",
		Op:        "classify",
		Detail:    fmt.Sprintf("tier=%s kind=%s decompose=%v", profile.Tier, profile.Kind, profile.RequiresDecomposition),
	})
	o.emit(Event{Type: EventClassified, RunID: runID,
		Message: fmt.Sprintf("%s/%s", profile.Tier, profile.Kind)})

	// Routing failures abort the run before anything is scheduled.
	binding, err := o.cfg.Router.Route(profile)
	if err != nil {
		tracer.Record(trace.Event{Component: "orchestrator", Op: "route", Err: err.Error()})
		o.emit(Event{Type: EventRunDone, RunID: runID, Err: err})
		return nil, err
	}
	tracer.Record(trace.Event{
		Component: "orchestrator",
		Op:        "route",
		Detail:    fmt.Sprintf("%s/%s", binding.Provider, binding.Model),
	})

	if o.cfg.State != nil {
		if err := o.cfg.State.CreateRun(ctx, runID, request, profile); err != nil {
			log.Printf("[orchestrator] persist run %s: %v", runID, err)
		}
	}

	agents := o.cfg.NewAgents(agent.Deps{
		Providers:     o.cfg.Providers,
		Tracer:        tracer,
		WorkDir:       o.cfg.WorkDir,
		ToolTimeout:   o.cfg.ToolTimeout,
		MaxIterations: o.cfg.MaxIterations,
		RetryAttempts: o.cfg.RetryAttempts,
		RetryBackoff:  o.cfg.RetryBackoff,
	})

	var result *models.AggregatedResult
	if profile.RequiresDecomposition {
		result, err = o.runGraph(ctx, runID, request, binding, agents, tracer)
	} else {
		result, err = o.runSingle(ctx, runID, request, profile, binding, agents, tracer)
	}
	if err != nil {
		o.finishRun(runID, models.RunFailed, "", nil)
		o.emit(Event{Type: EventRunDone, RunID: runID, Err: err})
		return nil, err
	}

	o.appendHistory(request, result.Summary)
	o.finishRun(runID, result.Status, result.Summary, result.PerNode)
	tracer.Record(trace.Event{
		Component: "orchestrator",
		Op:        "run_done",
		Detail:    string(result.Status),
		Duration:  time.Since(start),
	})
	o.emit(Event{Type: EventRunDone, RunID: runID, Message: string(result.Status)})
	return result, nil
}

// runSingle executes a request that needs no decomposition.
func (o *Orchestrator) runSingle(ctx context.Context, runID, request string, profile models.TaskProfile, binding models.ModelBinding, agents *agent.Registry, tracer *trace.Recorder) (*models.AggregatedResult, error) {
	ag, err := agents.For(profile.Kind)
	if err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventNodeStarted, RunID: runID, NodeID: singleNodeID})
	tracer.Record(trace.Event{Component: "orchestrator", Op: "node_start", NodeID: singleNodeID})

	res, runErr := ag.RunTask(ctx, agent.Task{
		NodeID:      singleNodeID,
		Description: request,
		Kind:        profile.Kind,
		Binding:     binding,
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	node := &models.TaskNode{
		ID:          singleNodeID,
		Description: request,
		AgentKind:   profile.Kind,
		Result:      res,
	}

	result := &models.AggregatedResult{
		PerNode: []models.NodeResult{{NodeID: singleNodeID, Result: res}},
		Summary: res.Output,
	}
	switch {
	case runErr != nil:
		node.Status = models.NodeFailed
		result.Status = models.RunFailed
		result.Summary = ""
		o.emit(Event{Type: EventNodeFailed, RunID: runID, NodeID: singleNodeID, Err: runErr})
		tracer.Record(trace.Event{Component: "orchestrator", Op: "node_done", NodeID: singleNodeID,
			Detail: string(models.NodeFailed), Err: runErr.Error(), Duration: res.Duration})
	case res.Status == models.ResultNeedsMoreWork:
		node.Status = models.NodeSucceeded
		result.Status = models.RunPartialSuccess
		o.emit(Event{Type: EventNodeCompleted, RunID: runID, NodeID: singleNodeID})
		tracer.Record(trace.Event{Component: "orchestrator", Op: "node_done", NodeID: singleNodeID,
			Detail: string(models.ResultNeedsMoreWork), Duration: res.Duration})
	default:
		node.Status = models.NodeSucceeded
		result.Status = models.RunCompleted
		o.emit(Event{Type: EventNodeCompleted, RunID: runID, NodeID: singleNodeID})
		tracer.Record(trace.Event{Component: "orchestrator", Op: "node_done", NodeID: singleNodeID,
			Detail: string(models.NodeSucceeded), Duration: res.Duration})
	}

	o.saveNode(runID, node)
	return result, nil
}

// runGraph decomposes the request and executes the resulting task
// graph with a bounded worker pool.
func (o *Orchestrator) runGraph(ctx context.Context, runID, request string, planBinding models.ModelBinding, agents *agent.Registry, tracer *trace.Recorder) (*models.AggregatedResult, error) {
	nodes, err := o.decomposer.Decompose(ctx, request, planBinding)
	if err != nil {
		return nil, fmt.Errorf("decompose request: %w", err)
	}
	tracer.Record(trace.Event{
		Component: "orchestrator",
		Op:        "decompose",
		Detail:    fmt.Sprintf("%d nodes", len(nodes)),
	})
	o.emit(Event{Type: EventDecomposed, RunID: runID, Message: fmt.Sprintf("%d tasks", len(nodes))})

	gph := graph.New()
	if err := gph.Build(nodes); err != nil {
		return nil, fmt.Errorf("build task graph: %w", err)
	}

	// Resolve every tier the graph will need before any node runs, so a
	// missing provider aborts the whole run instead of failing midway.
	bindings, err := o.cfg.Router.RouteAll(neededTiers(nodes)...)
	if err != nil {
		return nil, err
	}

	if err := o.execute(ctx, runID, gph, bindings, agents, tracer); err != nil {
		return nil, err
	}

	return aggregate(gph), nil
}

// execute drives the graph to completion. Node failures cascade as
// skips inside the graph; only cancellation aborts the loop.
func (o *Orchestrator) execute(ctx context.Context, runID string, gph *graph.DependencyGraph, bindings map[models.ComplexityTier]models.ModelBinding, agents *agent.Registry, tracer *trace.Recorder) error {
	eg, runCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.cfg.MaxWorkers)

	// Each finished node pokes the dispatcher to look for newly ready work.
	notify := make(chan struct{}, gph.Size())

	launchReady := func() {
		for _, node := range gph.ReadySet() {
			node := node
			if err := gph.MarkRunning(node.ID); err != nil {
				log.Printf("[orchestrator] mark running %s: %v", node.ID, err)
				continue
			}
			o.emit(Event{Type: EventNodeQueued, RunID: runID, NodeID: node.ID})
			eg.Go(func() error {
				o.runNode(runCtx, runID, node, gph, bindings, agents, tracer)
				select {
				case notify <- struct{}{}:
				default:
				}
				return runCtx.Err()
			})
		}
	}

	launchReady()
	for !gph.Complete() {
		select {
		case <-notify:
			launchReady()
		case <-ctx.Done():
			eg.Wait()
			return ctx.Err()
		}
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runNode executes one graph node and records its terminal state.
func (o *Orchestrator) runNode(ctx context.Context, runID string, node *models.TaskNode, gph *graph.DependencyGraph, bindings map[models.ComplexityTier]models.ModelBinding, agents *agent.Registry, tracer *trace.Recorder) {
	o.emit(Event{Type: EventNodeStarted, RunID: runID, NodeID: node.ID})
	tracer.Record(trace.Event{Component: "orchestrator", Op: "node_start", NodeID: node.ID})

	fail := func(res *models.AgentResult, err error) {
		if markErr := gph.MarkFailed(node.ID, res); markErr != nil {
			log.Printf("[orchestrator] mark failed %s: %v", node.ID, markErr)
		}
		o.emit(Event{Type: EventNodeFailed, RunID: runID, NodeID: node.ID, Err: err})
		tracer.Record(trace.Event{Component: "orchestrator", Op: "node_done", NodeID: node.ID,
			Detail: string(models.NodeFailed), Err: err.Error()})
		o.saveNode(runID, node)
		o.emitSkips(runID, gph, node.ID)
	}

	ag, err := agents.For(node.AgentKind)
	if err != nil {
		fail(&models.AgentResult{Status: models.ResultFailed, Error: err.Error()}, err)
		return
	}

	res, runErr := ag.RunTask(ctx, agent.Task{
		NodeID:      node.ID,
		Description: node.Description,
		Kind:        node.AgentKind,
		Binding:     bindings[tierForKind(node.AgentKind)],
	})
	if runErr != nil {
		fail(res, runErr)
		return
	}

	if markErr := gph.MarkSucceeded(node.ID, res); markErr != nil {
		log.Printf("[orchestrator] mark succeeded %s: %v", node.ID, markErr)
	}
	o.emit(Event{Type: EventNodeCompleted, RunID: runID, NodeID: node.ID})
	tracer.Record(trace.Event{Component: "orchestrator", Op: "node_done", NodeID: node.ID,
		Detail: string(models.NodeSucceeded), Duration: res.Duration})
	o.saveNode(runID, node)
}

// emitSkips reports nodes that the given failure cascaded into.
func (o *Orchestrator) emitSkips(runID string, gph *graph.DependencyGraph, failedID string) {
	for _, node := range gph.Nodes() {
		if node.Status == models.NodeSkipped && node.SkipCause == failedID {
			o.emit(Event{Type: EventNodeSkipped, RunID: runID, NodeID: node.ID,
				Message: fmt.Sprintf("ancestor %s failed", failedID)})
			o.saveNode(runID, node)
		}
	}
}

// aggregate folds the graph's terminal states into the caller-facing
// result.
func aggregate(gph *graph.DependencyGraph) *models.AggregatedResult {
	result := &models.AggregatedResult{}
	var succeeded, notSucceeded int
	var truncated bool
	var parts []string

	for _, node := range gph.Nodes() {
		result.PerNode = append(result.PerNode, models.NodeResult{NodeID: node.ID, Result: node.Result})
		switch node.Status {
		case models.NodeSucceeded:
			succeeded++
			if node.Result != nil && node.Result.Status == models.ResultNeedsMoreWork {
				truncated = true
			}
			if node.Result != nil && node.Result.Output != "" {
				parts = append(parts, node.Result.Output)
			}
		case models.NodeSkipped:
			notSucceeded++
			result.Skipped = append(result.Skipped, models.SkippedNode{
				NodeID:         node.ID,
				FailedAncestor: node.SkipCause,
			})
		default:
			notSucceeded++
		}
	}

	// A truncated node kept its partial output, so the run is at best
	// partial even when every node reached succeeded.
	switch {
	case notSucceeded == 0 && !truncated:
		result.Status = models.RunCompleted
	case succeeded > 0:
		result.Status = models.RunPartialSuccess
	default:
		result.Status = models.RunFailed
	}
	result.Summary = strings.Join(parts, "\n\n")
	return result
}

// tierForKind maps a task kind to the complexity tier its nodes are
// routed at. Coding work gets the coding tier; everything else needs
// the complex tier since it came out of a decomposed request.
func tierForKind(kind models.TaskKind) models.ComplexityTier {
	if kind == models.KindCoding {
		return models.TierCoding
	}
	return models.TierComplex
}

// neededTiers returns the distinct tiers the graph's nodes route at.
func neededTiers(nodes []*models.TaskNode) []models.ComplexityTier {
	seen := make(map[models.ComplexityTier]bool)
	var tiers []models.ComplexityTier
	for _, node := range nodes {
		tier := tierForKind(node.AgentKind)
		if !seen[tier] {
			seen[tier] = true
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

// newTracer opens a per-run trace recorder, falling back to a no-op
// when tracing is disabled or the file cannot be created.
func (o *Orchestrator) newTracer(runID string) *trace.Recorder {
	if !o.cfg.TraceEnabled || o.cfg.TraceDir == "" {
		return trace.Nop()
	}
	tracer, err := trace.New(o.cfg.TraceDir, runID)
	if err != nil {
		log.Printf("[orchestrator] trace disabled for run %s: %v", runID, err)
		return trace.Nop()
	}
	return tracer
}

// recentTurns loads classifier context from the history store.
func (o *Orchestrator) recentTurns(ctx context.Context) []history.Turn {
	if o.cfg.History == nil || o.cfg.RecentTurns <= 0 {
		return nil
	}
	turns, err := o.cfg.History.Recent(ctx, o.cfg.RecentTurns)
	if err != nil {
		log.Printf("[orchestrator] load history: %v", err)
		return nil
	}
	return turns
}

// appendHistory records the exchange in the conversation store.
func (o *Orchestrator) appendHistory(request, summary string) {
	if o.cfg.History == nil {
		return
	}
	ctx := context.Background()
	if err := o.cfg.History.Append(ctx, history.Turn{Role: history.RoleUser, Content: request}); err != nil {
		log.Printf("[orchestrator] append history: %v", err)
		return
	}
	if summary == "" {
		return
	}
	if err := o.cfg.History.Append(ctx, history.Turn{Role: history.RoleAssistant, Content: summary}); err != nil {
		log.Printf("[orchestrator] append history: %v", err)
	}
}

// saveNode persists a node's terminal state. Persistence failures are
// logged, never fatal.
func (o *Orchestrator) saveNode(runID string, node *models.TaskNode) {
	if o.cfg.State == nil {
		return
	}
	if err := o.cfg.State.SaveNode(context.Background(), runID, node); err != nil {
		log.Printf("[orchestrator] persist node %s: %v", node.ID, err)
	}
}

// finishRun persists the run's final state.
func (o *Orchestrator) finishRun(runID string, status models.RunStatus, summary string, perNode []models.NodeResult) {
	if o.cfg.State == nil {
		return
	}
	var tokensIn, tokensOut int64
	for _, nr := range perNode {
		if nr.Result != nil {
			tokensIn += nr.Result.TokensIn
			tokensOut += nr.Result.TokensOut
		}
	}
	if err := o.cfg.State.FinishRun(context.Background(), runID, status, summary, tokensIn, tokensOut); err != nil {
		log.Printf("[orchestrator] finish run %s: %v", runID, err)
	}
}
