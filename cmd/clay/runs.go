package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clayworks/clay/internal/config"
	"github.com/clayworks/clay/internal/state"
	"github.com/clayworks/clay/pkg/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List past runs or show one run's detail",
	Long: `Without arguments, lists recent runs. With a run ID, shows the
run's tasks and their outcomes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(filepath.Join(config.DataDir(), "clay.db"))
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate state: %w", err)
		}

		if len(args) == 1 {
			return showRun(cmd, db, args[0])
		}
		return listRuns(cmd, db)
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "How many runs to list")
}

func listRuns(cmd *cobra.Command, db *state.DB) error {
	runs, err := db.RecentRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %-15s  %s\n",
			run.ID,
			run.StartedAt.Format("2006-01-02 15:04"),
			colorStatus(run.Status),
			truncate(run.Request, 60))
	}
	return nil
}

func showRun(cmd *cobra.Command, db *state.DB, id string) error {
	run, nodes, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s\n", run.ID, run.Request)
	fmt.Printf("status: %s  tier: %s  kind: %s\n", colorStatus(run.Status), run.Tier, run.Kind)
	fmt.Printf("tokens: %d in / %d out\n", run.TokensIn, run.TokensOut)
	if !run.FinishedAt.IsZero() {
		fmt.Printf("duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}

	if len(nodes) > 0 {
		fmt.Println("\ntasks:")
		for _, node := range nodes {
			line := fmt.Sprintf("  %-10s %s", colorStatus(string(node.Status)), truncate(node.Description, 50))
			if node.SkipCause != "" {
				line += fmt.Sprintf(" (ancestor %s failed)", node.SkipCause)
			}
			if node.Error != "" {
				line += fmt.Sprintf(" [%s]", node.Error)
			}
			fmt.Println(line)
		}
	}
	return nil
}

// truncate shortens s to at most max runes, marking the cut with an
// ellipsis. Counting runes keeps multi-byte text intact at the boundary.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func colorStatus(status string) string {
	switch status {
	case string(models.RunCompleted), string(models.NodeSucceeded):
		return color.GreenString(status)
	case string(models.RunPartialSuccess), string(models.NodeSkipped):
		return color.YellowString(status)
	case string(models.RunFailed):
		return color.RedString(status)
	default:
		return status
	}
}
