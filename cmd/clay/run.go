package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clayworks/clay/internal/classify"
	"github.com/clayworks/clay/internal/config"
	"github.com/clayworks/clay/internal/history"
	"github.com/clayworks/clay/internal/orchestrator"
	"github.com/clayworks/clay/internal/provider"
	"github.com/clayworks/clay/internal/router"
	"github.com/clayworks/clay/internal/state"
	"github.com/clayworks/clay/pkg/models"
)

var (
	runQuiet   bool
	runNoTrace bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a request through the orchestrator",
	Long: `Run a request end to end.

The request is classified by complexity and kind, routed to a model
tier, and executed. Requests naming multiple deliverables are split
into a task graph and run by parallel agents; everything else runs as
a single agent task.

Examples:
  clay run "what is 2+2?"
  clay run "fix the race in internal/pool and add a regression test"
  clay run "create a project with 3 modules: parser, planner, executor"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Print only the final result")
	runCmd.Flags().BoolVar(&runNoTrace, "no-trace", false, "Disable trace recording for this run")
}

func runRequest(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if runNoTrace {
		cfg.Trace.Enabled = false
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(config.DataDir(), "history.db"))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	db, err := state.Open(filepath.Join(config.DataDir(), "clay.db"))
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state: %w", err)
	}

	traceDir := cfg.Trace.Dir
	if traceDir == "" {
		traceDir = filepath.Join(config.DataDir(), "traces")
	}
	toolsDir := cfg.Tools.WorkDir
	if toolsDir == "" {
		toolsDir = workDir
	}

	rtr := router.New(cfg.Routing, cfg)
	if _, err := config.Watch(workDir, func(fresh *config.Config) {
		rtr.Reload(fresh.Routing, fresh)
	}, func(err error) {
		fmt.Fprintf(os.Stderr, "config reload failed: %v\n", err)
	}); err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Classifier:    classify.New(),
		Router:        rtr,
		Providers:     providers,
		History:       store,
		State:         db,
		TraceEnabled:  cfg.Trace.Enabled,
		TraceDir:      traceDir,
		WorkDir:       toolsDir,
		MaxWorkers:    cfg.Orchestrator.MaxWorkers,
		RecentTurns:   cfg.History.RecentTurns,
		MaxIterations: cfg.Agent.MaxIterations,
		RetryAttempts: cfg.Agent.RetryAttempts,
		RetryBackoff:  cfg.Agent.RetryBackoff,
		ToolTimeout:   cfg.Tools.Timeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !runQuiet {
		go printEvents(orch.Events())
	}

	result, err := orch.Run(ctx, request)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

// buildProviders constructs the configured model backends.
func buildProviders(cfg *config.Config) (map[string]provider.Provider, error) {
	providers := make(map[string]provider.Provider)

	if cfg.HasProviderCredential("anthropic") {
		anthropic, err := provider.NewAnthropic(provider.AnthropicConfig{
			APIKey:     cfg.AnthropicAPIKey(),
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic provider: %w", err)
		}
		providers["anthropic"] = anthropic
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no provider credentials configured; set ANTHROPIC_API_KEY or enable Bedrock")
	}
	return providers, nil
}

// printEvents renders the orchestrator's progress stream.
func printEvents(events <-chan orchestrator.Event) {
	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	for ev := range events {
		switch ev.Type {
		case orchestrator.EventClassified:
			dim.Printf("  classified as %s\n", ev.Message)
		case orchestrator.EventDecomposed:
			dim.Printf("  decomposed into %s\n", ev.Message)
		case orchestrator.EventNodeStarted:
			dim.Printf("  ▸ %s running\n", ev.NodeID)
		case orchestrator.EventNodeCompleted:
			green.Printf("  ✓ %s\n", ev.NodeID)
		case orchestrator.EventNodeFailed:
			red.Printf("  ✗ %s: %v\n", ev.NodeID, ev.Err)
		case orchestrator.EventNodeSkipped:
			yellow.Printf("  - %s skipped (%s)\n", ev.NodeID, ev.Message)
		}
	}
}

// printResult renders the final aggregated result.
func printResult(result *models.AggregatedResult) {
	switch result.Status {
	case models.RunCompleted:
		color.Green("\n%s", statusLine(result))
	case models.RunPartialSuccess:
		color.Yellow("\n%s", statusLine(result))
	default:
		color.Red("\n%s", statusLine(result))
	}

	if result.Summary != "" {
		fmt.Printf("\n%s\n", result.Summary)
	}
	for _, skipped := range result.Skipped {
		color.Yellow("skipped %s: ancestor %s failed", skipped.NodeID, skipped.FailedAncestor)
	}

	var tokensIn, tokensOut int64
	for _, nr := range result.PerNode {
		if nr.Result != nil {
			tokensIn += nr.Result.TokensIn
			tokensOut += nr.Result.TokensOut
		}
	}
	color.New(color.Faint).Printf("\ntokens: %d in / %d out\n", tokensIn, tokensOut)
}

func statusLine(result *models.AggregatedResult) string {
	succeeded := 0
	for _, nr := range result.PerNode {
		if nr.Result != nil && nr.Result.Status != models.ResultFailed {
			succeeded++
		}
	}
	return fmt.Sprintf("%s (%d/%d tasks)", result.Status, succeeded, len(result.PerNode))
}
