package orchestrator

import (
	"strings"
	"testing"

	"github.com/clayworks/clay/pkg/models"
)

func TestParseDecomposition(t *testing.T) {
	response := `Here is the breakdown:
[
  {"title": "Schema", "description": "Design the schema", "depends_on": [], "kind": "coding", "priority": 2},
  {"title": "Loader", "description": "Write the loader", "depends_on": ["Schema"], "kind": "coding", "priority": 1},
  {"title": "Docs", "description": "Document the result", "depends_on": ["Schema", "Loader"], "kind": "creative"}
]
Let me know if you need anything else.`

	nodes, err := parseDecomposition(response)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}

	if nodes[0].Priority != 2 || nodes[0].AgentKind != models.KindCoding {
		t.Errorf("unexpected first node: %+v", nodes[0])
	}
	if len(nodes[1].DependsOn) != 1 || nodes[1].DependsOn[0] != nodes[0].ID {
		t.Errorf("dependency title not resolved to ID: %+v", nodes[1])
	}
	if len(nodes[2].DependsOn) != 2 {
		t.Errorf("expected 2 dependencies, got %v", nodes[2].DependsOn)
	}
	for _, node := range nodes {
		if node.Status != models.NodePending {
			t.Errorf("node %s status = %s, want pending", node.ID, node.Status)
		}
	}
}

func TestParseDecompositionUnknownDependency(t *testing.T) {
	response := `[{"title": "A", "description": "a", "depends_on": ["Missing"]}]`
	if _, err := parseDecomposition(response); err == nil {
		t.Error("expected error for unknown dependency title")
	}
}

func TestParseDecompositionDuplicateTitle(t *testing.T) {
	response := `[{"title": "A", "description": "a"}, {"title": "A", "description": "b"}]`
	if _, err := parseDecomposition(response); err == nil {
		t.Error("expected error for duplicate title")
	}
}

func TestParseDecompositionInvalidKindFallsBack(t *testing.T) {
	response := `[{"title": "A", "description": "a", "kind": "wizardry"}]`
	nodes, err := parseDecomposition(response)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if nodes[0].AgentKind != models.KindGeneral {
		t.Errorf("kind = %s, want general fallback", nodes[0].AgentKind)
	}
}

func TestParseDecompositionRejectsGarbage(t *testing.T) {
	for _, response := range []string{
		"no json here",
		"[]",
		`[{"description": "untitled"}]`,
	} {
		if _, err := parseDecomposition(response); err == nil {
			t.Errorf("expected parse error for %q", response)
		}
	}
}

func TestParseDecompositionTitleAsDescriptionFallback(t *testing.T) {
	nodes, err := parseDecomposition(`[{"title": "Just a title"}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(nodes[0].Description, "Just a title") {
		t.Errorf("description = %q, want title fallback", nodes[0].Description)
	}
}
