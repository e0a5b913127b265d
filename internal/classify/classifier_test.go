package classify

import (
	"reflect"
	"testing"

	"github.com/clayworks/clay/internal/history"
	"github.com/clayworks/clay/pkg/models"
)

func TestClassifyTiers(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		text string
		tier models.ComplexityTier
		kind models.TaskKind
	}{
		{"simple math", "what is 2+2?", models.TierSimple, models.KindGeneral},
		{"greeting", "hello there", models.TierSimple, models.KindGeneral},
		{"definition", "define idempotent", models.TierSimple, models.KindGeneral},
		{"coding verb", "implement a binary search function", models.TierCoding, models.KindCoding},
		{"bug fix", "fix the error in the parser", models.TierCoding, models.KindCoding},
		{"file extension", "update main.go to handle flags", models.TierCoding, models.KindCoding},
		{"research", "research the latest trends in databases", models.TierComplex, models.KindResearch},
		{"creative", "write a short story about a lighthouse", models.TierComplex, models.KindCreative},
		{"analysis", "analyze the tradeoffs between these approaches", models.TierComplex, models.KindGeneral},
		{"unrecognized", "qwzx frobnicate the blorp", models.TierComplex, models.KindGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := c.Classify(tt.text, nil)
			if profile.Tier != tt.tier {
				t.Errorf("tier = %s, want %s", profile.Tier, tt.tier)
			}
			if profile.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", profile.Kind, tt.kind)
			}
		})
	}
}

func TestClassifyDecomposition(t *testing.T) {
	c := New()

	tests := []struct {
		name      string
		text      string
		decompose bool
	}{
		{"counted deliverables", "create a project with 3 files and 2 tests", true},
		{"bullet list", "build these:\n- a parser\n- a formatter", true},
		{"numbered list", "do the following:\n1. write the schema\n2. write the loader", true},
		{"single deliverable", "implement a binary search function", false},
		{"simple question", "what is 2+2?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := c.Classify(tt.text, nil)
			if profile.RequiresDecomposition != tt.decompose {
				t.Errorf("requiresDecomposition = %v, want %v", profile.RequiresDecomposition, tt.decompose)
			}
		})
	}
}

func TestClassifySimpleNeverDecomposes(t *testing.T) {
	c := New()
	// A simple question that happens to contain enumeration-like text
	// must stay a single-agent run.
	profile := c.Classify("what is 2+2 and 3+3 and 4+4?", nil)
	if profile.Tier != models.TierSimple {
		t.Fatalf("tier = %s, want simple", profile.Tier)
	}
	if profile.RequiresDecomposition {
		t.Error("simple tier must not require decomposition")
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New()
	inputs := []string{
		"what is 2+2?",
		"implement quicksort in rust",
		"research recent papers on consensus",
		"something entirely ambiguous",
	}

	for _, text := range inputs {
		first := c.Classify(text, nil)
		second := c.Classify(text, nil)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("classification of %q not deterministic: %+v vs %+v", text, first, second)
		}
	}
}

func TestClassifyHistoryStrengthensCoding(t *testing.T) {
	c := New()

	// Matches no pattern table on its own; the path-like token plus
	// coding history is what makes it a coding continuation.
	const text = "now do the same for the other one in src/"

	without := c.Classify(text, nil)
	if without.Tier != models.TierComplex || without.Kind != models.KindGeneral {
		t.Errorf("without history: got %s/%s, want complex/general", without.Tier, without.Kind)
	}

	codingTurns := []history.Turn{
		{Role: history.RoleUser, Content: "implement the config loader"},
	}
	with := c.Classify(text, codingTurns)
	if with.Tier != models.TierCoding || with.Kind != models.KindCoding {
		t.Errorf("with coding history: got %s/%s, want coding/coding", with.Tier, with.Kind)
	}

	// History that never touched code must not flip the classification.
	otherTurns := []history.Turn{
		{Role: history.RoleUser, Content: "tell me a tale about winter"},
	}
	other := c.Classify(text, otherTurns)
	if other.Tier != models.TierComplex || other.Kind != models.KindGeneral {
		t.Errorf("with unrelated history: got %s/%s, want complex/general", other.Tier, other.Kind)
	}
}
