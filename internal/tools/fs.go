package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clayworks/clay/internal/provider"
)

// resolvePath anchors relative paths at workDir.
func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

// ReadFile reads a file and returns its contents with line numbers.
type ReadFile struct {
	workDir string
}

// NewReadFile creates a ReadFile tool rooted at workDir.
func NewReadFile(workDir string) *ReadFile {
	return &ReadFile{workDir: workDir}
}

type readArgs struct {
	FilePath string `json:"file_path"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

func (t *ReadFile) Name() string { return "read_file" }

func (t *ReadFile) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Read a file from the filesystem. Returns file contents with line numbers.",
		InputSchema: map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to read",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Line number to start reading from (1-indexed, optional)",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of lines to read (optional)",
			},
		},
		Required: []string{"file_path"},
	}
}

func (t *ReadFile) Validate(args json.RawMessage) error {
	var p readArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if p.Offset < 0 || p.Limit < 0 {
		return fmt.Errorf("offset and limit must be non-negative")
	}
	return nil
}

func (t *ReadFile) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p readArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	content, err := os.ReadFile(resolvePath(t.workDir, p.FilePath))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")

	start := 0
	if p.Offset > 0 {
		start = p.Offset - 1
		if start >= len(lines) {
			return "", fmt.Errorf("offset %d beyond end of file (%d lines)", p.Offset, len(lines))
		}
	}
	end := len(lines)
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, lines[i])
	}
	return b.String(), nil
}

// WriteFile writes content to a file, creating parent directories.
type WriteFile struct {
	workDir string
}

// NewWriteFile creates a WriteFile tool rooted at workDir.
func NewWriteFile(workDir string) *WriteFile {
	return &WriteFile{workDir: workDir}
}

type writeArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (t *WriteFile) Name() string { return "write_file" }

func (t *WriteFile) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Write content to a file. Creates parent directories if needed.",
		InputSchema: map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to write",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content to write to the file",
			},
		},
		Required: []string{"file_path", "content"},
	}
}

func (t *WriteFile) Validate(args json.RawMessage) error {
	var p writeArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	return nil
}

func (t *WriteFile) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p writeArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	path := resolvePath(t.workDir, p.FilePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(p.Content), p.FilePath), nil
}

// EditFile replaces text in a file. The old string must be unique
// unless replace_all is set.
type EditFile struct {
	workDir string
}

// NewEditFile creates an EditFile tool rooted at workDir.
func NewEditFile(workDir string) *EditFile {
	return &EditFile{workDir: workDir}
}

type editArgs struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

func (t *EditFile) Name() string { return "edit_file" }

func (t *EditFile) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "Edit a file by replacing text. The old_string must be unique unless replace_all is true.",
		InputSchema: map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to edit",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "The exact text to find and replace",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "The text to replace it with",
			},
			"replace_all": map[string]any{
				"type":        "boolean",
				"description": "If true, replace all occurrences (default: false)",
			},
		},
		Required: []string{"file_path", "old_string", "new_string"},
	}
}

func (t *EditFile) Validate(args json.RawMessage) error {
	var p editArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if p.OldString == "" {
		return fmt.Errorf("old_string is required")
	}
	if p.OldString == p.NewString {
		return fmt.Errorf("old_string and new_string are identical")
	}
	return nil
}

func (t *EditFile) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p editArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	path := resolvePath(t.workDir, p.FilePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	text := string(content)
	count := strings.Count(text, p.OldString)
	if count == 0 {
		return "", fmt.Errorf("old_string not found in file")
	}
	if !p.ReplaceAll && count > 1 {
		return "", fmt.Errorf("old_string found %d times; must be unique or use replace_all=true", count)
	}

	var updated string
	if p.ReplaceAll {
		updated = strings.ReplaceAll(text, p.OldString, p.NewString)
	} else {
		updated = strings.Replace(text, p.OldString, p.NewString, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if p.ReplaceAll {
		return fmt.Sprintf("replaced %d occurrences", count), nil
	}
	return "edit applied", nil
}

// ListDir lists the contents of a directory.
type ListDir struct {
	workDir string
}

// NewListDir creates a ListDir tool rooted at workDir.
func NewListDir(workDir string) *ListDir {
	return &ListDir{workDir: workDir}
}

type listArgs struct {
	Path string `json:"path"`
}

func (t *ListDir) Name() string { return "list_dir" }

func (t *ListDir) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: "List contents of a directory.",
		InputSchema: map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path to list",
			},
		},
		Required: []string{"path"},
	}
}

func (t *ListDir) Validate(args json.RawMessage) error {
	var p listArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return err
	}
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

func (t *ListDir) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var p listArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(resolvePath(t.workDir, p.Path))
	if err != nil {
		return "", fmt.Errorf("read directory: %w", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&b, "d %s/\n", entry.Name())
			continue
		}
		if info, err := entry.Info(); err == nil {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", entry.Name(), info.Size())
		} else {
			fmt.Fprintf(&b, "- %s\n", entry.Name())
		}
	}
	return b.String(), nil
}
