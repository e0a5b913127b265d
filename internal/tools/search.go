package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/clayworks/clay/internal/provider"
)

// Glob finds files matching a pattern.
type Glob struct {
	workDir string
}

// NewGlob creates a Glob tool rooted at workDir.
func NewGlob(workDir string) *Glob {
	return &Glob{workDir: workDir}
}

type globArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

func (t *Glob) Name() string { return "glob" }

func (t *Glob) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Find files whose name matches a glob pattern.",
		InputSchema: map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern to match (e.g. '*.go')",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search in (optional, defaults to working directory)",
			},
		},
		Required: []string{"pattern"},
	}
}

func (t *Glob) Validate(args json.RawMessage) error {
	var p globArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if _, err := filepath.Match(p.Pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

func (t *Glob) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p globArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	searchPath := t.workDir
	if p.Path != "" {
		searchPath = resolvePath(t.workDir, p.Path)
	}

	var matches []string
	err := filepath.WalkDir(searchPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if matched, _ := filepath.Match(filepath.Base(p.Pattern), d.Name()); matched {
			if rel, err := filepath.Rel(searchPath, path); err == nil {
				matches = append(matches, rel)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("glob: %w", err)
	}

	if len(matches) == 0 {
		return "no files matched the pattern", nil
	}
	return strings.Join(matches, "\n"), nil
}

// Grep searches file contents with regex patterns via ripgrep.
type Grep struct {
	workDir string
}

// NewGrep creates a Grep tool rooted at workDir.
func NewGrep(workDir string) *Grep {
	return &Grep{workDir: workDir}
}

type grepArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Glob    string `json:"glob"`
	Context int    `json:"context"`
}

func (t *Grep) Name() string { return "grep" }

func (t *Grep) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Search file contents using regex patterns.",
		InputSchema: map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regex pattern to search for",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory to search in (optional)",
			},
			"glob": map[string]any{
				"type":        "string",
				"description": "Glob pattern to filter files (e.g. '*.go')",
			},
			"context": map[string]any{
				"type":        "integer",
				"description": "Number of context lines to show around matches",
			},
		},
		Required: []string{"pattern"},
	}
}

func (t *Grep) Validate(args json.RawMessage) error {
	var p grepArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if p.Context < 0 {
		return fmt.Errorf("context must be non-negative")
	}
	return nil
}

func (t *Grep) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p grepArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	cmdArgs := []string{"--color=never", "-n"}
	if p.Context > 0 {
		cmdArgs = append(cmdArgs, "-C", fmt.Sprintf("%d", p.Context))
	}
	if p.Glob != "" {
		cmdArgs = append(cmdArgs, "--glob", p.Glob)
	}
	cmdArgs = append(cmdArgs, p.Pattern)

	searchPath := t.workDir
	if p.Path != "" {
		searchPath = resolvePath(t.workDir, p.Path)
	}
	cmdArgs = append(cmdArgs, searchPath)

	cmd := exec.CommandContext(ctx, "rg", cmdArgs...)
	// rg exits non-zero on no match; that is not an error here.
	output, _ := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if len(output) == 0 {
		return "no matches found", nil
	}
	return truncate(string(output)), nil
}
