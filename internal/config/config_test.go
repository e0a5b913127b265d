package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clayworks/clay/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxWorkers != 4 {
		t.Errorf("max_workers = %d, want 4", cfg.Orchestrator.MaxWorkers)
	}
	if cfg.Agent.MaxIterations != 20 {
		t.Errorf("max_iterations = %d, want 20", cfg.Agent.MaxIterations)
	}
	if cfg.Tools.Timeout != 2*time.Minute {
		t.Errorf("tools.timeout = %s, want 2m", cfg.Tools.Timeout)
	}
	if !cfg.Trace.Enabled {
		t.Error("trace should be enabled by default")
	}
}

func TestLoadDefaultRoutingTable(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tier := range []models.ComplexityTier{models.TierSimple, models.TierCoding, models.TierComplex} {
		choices := cfg.Routing.ForTier(tier)
		if len(choices) == 0 {
			t.Errorf("tier %s has no routing entries", tier)
		}
	}

	// The simple tier must not reference the expensive models.
	for _, choice := range cfg.Routing.Simple {
		if choice.Model == "" {
			t.Error("simple tier entry has empty model")
		}
		if strings.Contains(choice.Model, "opus") {
			t.Errorf("simple tier routed to expensive model %s", choice.Model)
		}
	}
}

func TestLoadProjectOverride(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".clay")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	yaml := `
orchestrator:
  max_workers: 2
agent:
  max_iterations: 7
routing:
  simple:
    - provider: anthropic
      model: claude-3-5-haiku-20241022
      temperature: 0.1
      max_tokens: 1024
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxWorkers != 2 {
		t.Errorf("max_workers = %d, want 2", cfg.Orchestrator.MaxWorkers)
	}
	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("max_iterations = %d, want 7", cfg.Agent.MaxIterations)
	}
	if len(cfg.Routing.Simple) != 1 || cfg.Routing.Simple[0].Temperature != 0.1 {
		t.Errorf("routing.simple not overridden: %+v", cfg.Routing.Simple)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Orchestrator.MaxWorkers = 0 }},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"zero tool timeout", func(c *Config) { c.Tools.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHasProviderCredential(t *testing.T) {
	cfg := &Config{}
	t.Setenv("ANTHROPIC_API_KEY", "")

	if cfg.HasProviderCredential("anthropic") {
		t.Error("no credential configured, expected false")
	}
	if cfg.HasProviderCredential("openai") {
		t.Error("unknown provider, expected false")
	}

	cfg.Anthropic.APIKey = "sk-test"
	if !cfg.HasProviderCredential("anthropic") {
		t.Error("expected credential from config")
	}

	cfg.Anthropic.APIKey = ""
	cfg.Anthropic.UseBedrock = true
	if !cfg.HasProviderCredential("anthropic") {
		t.Error("expected bedrock to count as a credential")
	}
}
