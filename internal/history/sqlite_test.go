package history

import (
	"context"
	"path/filepath"
	"testing"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	turns := []Turn{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "second"},
		{Role: RoleUser, Content: "third"},
	}
	for _, turn := range turns {
		if err := store.Append(ctx, turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(recent))
	}

	// Oldest first within the window.
	if recent[0].Content != "second" || recent[1].Content != "third" {
		t.Errorf("got [%s %s], want [second third]", recent[0].Content, recent[1].Content)
	}
}

func TestRecentEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	recent, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected no turns, got %d", len(recent))
	}
}
