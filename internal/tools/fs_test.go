package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileLineNumbers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewReadFile(dir)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"file_path":"a.txt"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "1\tone") || !strings.Contains(out, "3\tthree") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReadFileOffsetLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree\nfour"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewReadFile(dir)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"file_path":"a.txt","offset":2,"limit":2}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out, "one") || strings.Contains(out, "four") {
		t.Errorf("offset/limit not applied:\n%s", out)
	}
	if !strings.Contains(out, "two") || !strings.Contains(out, "three") {
		t.Errorf("expected lines 2-3:\n%s", out)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFile(dir)

	_, err := tool.Execute(context.Background(),
		json.RawMessage(`{"file_path":"sub/deep/b.txt","content":"data"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "sub", "deep", "b.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "data" {
		t.Errorf("content = %q, want %q", content, "data")
	}
}

func TestEditFileUniqueness(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x x"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewEditFile(dir)
	_, err := tool.Execute(context.Background(),
		json.RawMessage(`{"file_path":"c.txt","old_string":"x","new_string":"y"}`))
	if err == nil {
		t.Fatal("expected ambiguous old_string to fail")
	}

	out, err := tool.Execute(context.Background(),
		json.RawMessage(`{"file_path":"c.txt","old_string":"x","new_string":"y","replace_all":true}`))
	if err != nil {
		t.Fatalf("replace_all: %v", err)
	}
	if !strings.Contains(out, "2") {
		t.Errorf("expected 2 replacements reported, got %q", out)
	}

	content, _ := os.ReadFile(filepath.Join(dir, "c.txt"))
	if string(content) != "y y" {
		t.Errorf("content = %q, want %q", content, "y y")
	}
}

func TestEditFileValidate(t *testing.T) {
	tool := NewEditFile(t.TempDir())

	tests := []struct {
		name string
		args string
		ok   bool
	}{
		{"valid", `{"file_path":"f","old_string":"a","new_string":"b"}`, true},
		{"missing path", `{"old_string":"a","new_string":"b"}`, false},
		{"missing old", `{"file_path":"f","new_string":"b"}`, false},
		{"identical strings", `{"file_path":"f","old_string":"a","new_string":"a"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.Validate(json.RawMessage(tt.args))
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBashEcho(t *testing.T) {
	tool := NewBash(t.TempDir())
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo hello"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}

func TestBashFailureIncludesOutput(t *testing.T) {
	tool := NewBash(t.TempDir())
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo oops >&2; exit 3"}`))
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestGlobMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tool := NewGlob(dir)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"*.go"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "a.go") || !strings.Contains(out, "b.go") || strings.Contains(out, "c.txt") {
		t.Errorf("unexpected matches:\n%s", out)
	}
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewListDir(dir)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"path":"."}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "d sub/") || !strings.Contains(out, "f.txt (3 bytes)") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}
