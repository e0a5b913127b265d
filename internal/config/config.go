// Package config handles configuration loading and management for clay.
// It supports XDG config paths, project-level overrides, and environment
// variables, and exposes the model routing table used by the router.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clayworks/clay/pkg/models"
)

// Config holds all configuration for clay.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic" yaml:"anthropic"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Agent        AgentConfig        `mapstructure:"agent" yaml:"agent"`
	Tools        ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	Routing      RoutingConfig      `mapstructure:"routing" yaml:"routing"`
	Trace        TraceConfig        `mapstructure:"trace" yaml:"trace"`
	History      HistoryConfig      `mapstructure:"history" yaml:"history"`
	Debug        bool               `mapstructure:"debug" yaml:"debug"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// direct API.
	UseBedrock bool `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string `mapstructure:"aws_region" yaml:"aws_region"`
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// OrchestratorConfig holds scheduling settings.
type OrchestratorConfig struct {
	// MaxWorkers is the maximum number of concurrently running agents.
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	// MaxIterations caps model calls per task before the run fails.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// RetryAttempts is how many times a transient provider error is retried.
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	// RetryBackoff is the initial backoff before the first retry; it
	// doubles on each subsequent attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// ToolsConfig holds tool invocation settings.
type ToolsConfig struct {
	// Timeout is the default per-invocation deadline.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// WorkDir is the directory tools operate in. Defaults to the
	// current working directory.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
}

// TraceConfig holds execution tracing settings.
type TraceConfig struct {
	// Enabled toggles trace recording.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Dir is where trace files are written. Defaults to the data dir.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// RecentTurns is how many prior turns are given to the classifier.
	RecentTurns int `mapstructure:"recent_turns" yaml:"recent_turns"`
}

// ModelChoice is one entry in a tier's preference list.
type ModelChoice struct {
	// Provider is the provider identifier (e.g. "anthropic").
	Provider string `mapstructure:"provider" yaml:"provider"`
	// Model is the provider-specific model identifier.
	Model string `mapstructure:"model" yaml:"model"`
	// Temperature is the sampling temperature for this choice.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	// MaxTokens is the completion token limit for this choice.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// RoutingConfig is the capability table keyed by complexity tier.
// Each tier holds an ordered preference list; the first entry whose
// provider has a configured credential wins.
type RoutingConfig struct {
	Simple  []ModelChoice `mapstructure:"simple" yaml:"simple"`
	Coding  []ModelChoice `mapstructure:"coding" yaml:"coding"`
	Complex []ModelChoice `mapstructure:"complex" yaml:"complex"`
}

// ForTier returns the preference list for the given tier.
func (r RoutingConfig) ForTier(tier models.ComplexityTier) []ModelChoice {
	switch tier {
	case models.TierSimple:
		return r.Simple
	case models.TierCoding:
		return r.Coding
	case models.TierComplex:
		return r.Complex
	default:
		return nil
	}
}

// ConfigDir returns the clay config directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "clay")
}

// DataDir returns the clay data directory, honoring XDG_DATA_HOME.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "clay")
}

// setDefaults registers default values on the given viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.max_workers", 4)
	v.SetDefault("agent.max_iterations", 20)
	v.SetDefault("agent.retry_attempts", 2)
	v.SetDefault("agent.retry_backoff", 500*time.Millisecond)
	v.SetDefault("tools.timeout", 2*time.Minute)
	v.SetDefault("trace.enabled", true)
	v.SetDefault("history.recent_turns", 5)
	v.SetDefault("debug", false)

	// Default routing table. The simple tier deliberately stays on the
	// cheapest adequate models; the expensive tier never appears there.
	v.SetDefault("routing.simple", []map[string]any{
		{"provider": "anthropic", "model": "claude-3-5-haiku-20241022", "temperature": 0.3, "max_tokens": 2048},
	})
	v.SetDefault("routing.coding", []map[string]any{
		{"provider": "anthropic", "model": "claude-sonnet-4-20250514", "temperature": 0.2, "max_tokens": 8192},
	})
	v.SetDefault("routing.complex", []map[string]any{
		{"provider": "anthropic", "model": "claude-sonnet-4-20250514", "temperature": 0.5, "max_tokens": 8192},
	})
}

// Load reads configuration from the XDG config dir, an optional
// project-local .clay/config.yaml, and CLAY_* environment variables.
// Missing files are not an error; defaults apply.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	if projectRoot != "" {
		v.AddConfigPath(filepath.Join(projectRoot, ".clay"))
	}

	v.SetEnvPrefix("CLAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads the config whenever the underlying file changes and
// passes the fresh Config to onChange. Reload errors are reported via
// onError; the previous config stays in effect.
func Watch(projectRoot string, onChange func(*Config), onError func(error)) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	if projectRoot != "" {
		v.AddConfigPath(filepath.Join(projectRoot, ".clay"))
	}

	v.SetEnvPrefix("CLAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Nothing to watch without a file; callers still get defaults.
		return v, nil
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return v, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	path := filepath.Join(ConfigDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// unmarshal decodes the viper state into a validated Config.
func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxWorkers < 1 {
		return fmt.Errorf("orchestrator.max_workers must be at least 1, got %d", c.Orchestrator.MaxWorkers)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Tools.Timeout <= 0 {
		return fmt.Errorf("tools.timeout must be positive, got %s", c.Tools.Timeout)
	}
	return nil
}

// AnthropicAPIKey returns the configured API key, falling back to the
// ANTHROPIC_API_KEY environment variable.
func (c *Config) AnthropicAPIKey() string {
	if c.Anthropic.APIKey != "" {
		return c.Anthropic.APIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// HasProviderCredential reports whether the given provider can be used.
func (c *Config) HasProviderCredential(provider string) bool {
	switch provider {
	case "anthropic":
		return c.AnthropicAPIKey() != "" || c.Anthropic.UseBedrock
	default:
		return false
	}
}
