package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clay",
	Short: "Task orchestration for LLM agents",
	Long: `Clay routes requests to the right model, splits compound work into a
dependency graph, and runs agents over it in parallel.

Simple questions go straight to a cheap model. Compound requests are
decomposed into tasks with dependencies, scheduled by a bounded worker
pool, and aggregated into a single result.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
