package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/clayworks/clay/internal/provider"
)

// maxToolOutput caps output fed back to the model.
const maxToolOutput = 30000

// Bash executes shell commands in the working directory.
type Bash struct {
	workDir string
}

// NewBash creates a Bash tool rooted at workDir.
func NewBash(workDir string) *Bash {
	return &Bash{workDir: workDir}
}

type bashArgs struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

func (t *Bash) Name() string { return "bash" }

func (t *Bash) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Execute a bash command and return its combined output.",
		InputSchema: map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to execute",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Short description of what this command does",
			},
		},
		Required: []string{"command"},
	}
}

func (t *Bash) Validate(args json.RawMessage) error {
	var p bashArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.Command == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

func (t *Bash) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p bashArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", p.Command)
	cmd.Dir = t.workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s\ncommand failed: %w", truncate(string(output)), err)
	}
	return truncate(string(output)), nil
}

func truncate(s string) string {
	if len(s) > maxToolOutput {
		return s[:maxToolOutput] + "\n... (output truncated)"
	}
	return s
}
