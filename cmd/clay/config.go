package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clayworks/clay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify clay configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/clay/config.yaml
Project-specific overrides can be placed in .clay/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		workDir, _ := os.Getwd()
		cfg, err := config.Load(workDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.AnthropicAPIKey() != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("orchestrator.max_workers: %d\n", cfg.Orchestrator.MaxWorkers)
	fmt.Printf("agent.max_iterations: %d\n", cfg.Agent.MaxIterations)
	fmt.Printf("agent.retry_attempts: %d\n", cfg.Agent.RetryAttempts)
	fmt.Printf("agent.retry_backoff: %s\n", cfg.Agent.RetryBackoff)
	fmt.Printf("tools.timeout: %s\n", cfg.Tools.Timeout)
	fmt.Printf("trace.enabled: %t\n", cfg.Trace.Enabled)
	fmt.Printf("history.recent_turns: %d\n", cfg.History.RecentTurns)
	for _, tier := range []string{"simple", "coding", "complex"} {
		for i, choice := range routingForName(cfg, tier) {
			fmt.Printf("routing.%s[%d]: %s/%s\n", tier, i, choice.Provider, choice.Model)
		}
	}
}

func routingForName(cfg *config.Config, tier string) []config.ModelChoice {
	switch tier {
	case "simple":
		return cfg.Routing.Simple
	case "coding":
		return cfg.Routing.Coding
	case "complex":
		return cfg.Routing.Complex
	default:
		return nil
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.AnthropicAPIKey() == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "orchestrator.max_workers":
		return strconv.Itoa(cfg.Orchestrator.MaxWorkers), nil
	case "agent.max_iterations":
		return strconv.Itoa(cfg.Agent.MaxIterations), nil
	case "agent.retry_attempts":
		return strconv.Itoa(cfg.Agent.RetryAttempts), nil
	case "agent.retry_backoff":
		return cfg.Agent.RetryBackoff.String(), nil
	case "tools.timeout":
		return cfg.Tools.Timeout.String(), nil
	case "trace.enabled":
		return strconv.FormatBool(cfg.Trace.Enabled), nil
	case "history.recent_turns":
		return strconv.Itoa(cfg.History.RecentTurns), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "orchestrator.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_workers: %w", err)
		}
		cfg.Orchestrator.MaxWorkers = n
	case "agent.max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_iterations: %w", err)
		}
		cfg.Agent.MaxIterations = n
	case "agent.retry_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry_attempts: %w", err)
		}
		cfg.Agent.RetryAttempts = n
	case "agent.retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry_backoff: %w", err)
		}
		cfg.Agent.RetryBackoff = d
	case "tools.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for tools.timeout: %w", err)
		}
		cfg.Tools.Timeout = d
	case "trace.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for trace.enabled: %w", err)
		}
		cfg.Trace.Enabled = b
	case "history.recent_turns":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for recent_turns: %w", err)
		}
		cfg.History.RecentTurns = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
