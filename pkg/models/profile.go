// Package models defines the shared data model for clay.
package models

// ComplexityTier classifies how capable a model must be to handle a request.
type ComplexityTier string

const (
	// TierSimple is for basic Q&A, quick facts, and short answers.
	TierSimple ComplexityTier = "simple"
	// TierCoding is for code generation, debugging, and refactoring.
	TierCoding ComplexityTier = "coding"
	// TierComplex is for analysis, research, and multi-step problem solving.
	TierComplex ComplexityTier = "complex"
)

// Valid returns true if the tier is a known value.
func (t ComplexityTier) Valid() bool {
	switch t {
	case TierSimple, TierCoding, TierComplex:
		return true
	default:
		return false
	}
}

// TaskKind describes the flavor of work a task calls for.
// It selects the agent variant and system prompt, independent of the tier.
type TaskKind string

const (
	// KindGeneral is the default task kind.
	KindGeneral TaskKind = "general"
	// KindCoding covers implementation, debugging, and refactoring work.
	KindCoding TaskKind = "coding"
	// KindResearch covers information gathering and synthesis.
	KindResearch TaskKind = "research"
	// KindCreative covers writing and content generation.
	KindCreative TaskKind = "creative"
)

// Valid returns true if the kind is a known value.
func (k TaskKind) Valid() bool {
	switch k {
	case KindGeneral, KindCoding, KindResearch, KindCreative:
		return true
	default:
		return false
	}
}

// TaskProfile is the classifier's verdict on an incoming request.
// It is created once per request and never mutated afterwards.
type TaskProfile struct {
	// RawText is the original request text.
	RawText string `json:"raw_text"`
	// Tier is the complexity tier the request was classified into.
	Tier ComplexityTier `json:"tier"`
	// Kind is the suggested task kind for agent selection.
	Kind TaskKind `json:"kind"`
	// RequiresDecomposition is true when the request names multiple
	// independent deliverables and should be split into a task graph.
	RequiresDecomposition bool `json:"requires_decomposition"`
}

// ModelBinding is the concrete provider/model pair chosen for a task.
// Bindings are resolved per task and not persisted beyond its lifetime.
type ModelBinding struct {
	// Provider is the provider identifier (e.g. "anthropic").
	Provider string `json:"provider"`
	// Model is the provider-specific model identifier.
	Model string `json:"model"`
	// Tier is the complexity tier this binding serves.
	Tier ComplexityTier `json:"tier"`
	// Temperature is the sampling temperature for this binding.
	Temperature float64 `json:"temperature"`
	// MaxTokens is the completion token limit for this binding.
	MaxTokens int `json:"max_tokens"`
}
