// Package classify inspects incoming requests and produces task profiles.
package classify

import (
	"strings"

	"github.com/clayworks/clay/internal/history"
	"github.com/clayworks/clay/pkg/models"
)

// Classifier maps request text to a TaskProfile. Classification is a
// pure function of the text and the supplied history turns: no clock,
// no randomness, no hidden state. The same input always yields the
// same profile.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify produces the profile for a request. Recent conversation
// turns may strengthen a coding signal (e.g. the conversation has been
// about source files) but never weaken one. Classification is total:
// text matching no table falls through to the complex tier, the safest
// choice for an unrecognized request.
func (c *Classifier) Classify(rawText string, recent []history.Turn) models.TaskProfile {
	lower := strings.ToLower(rawText)

	profile := models.TaskProfile{
		RawText:               rawText,
		RequiresDecomposition: anyMatch(decompositionPatterns, lower),
	}

	switch {
	case anyMatch(creativePatterns, lower):
		profile.Tier = models.TierComplex
		profile.Kind = models.KindCreative
	case anyMatch(researchPatterns, lower):
		profile.Tier = models.TierComplex
		profile.Kind = models.KindResearch
	case anyMatch(codingPatterns, lower):
		profile.Tier = models.TierCoding
		profile.Kind = models.KindCoding
	case anyMatch(complexPatterns, lower):
		profile.Tier = models.TierComplex
		profile.Kind = models.KindGeneral
	case anyMatch(simplePatterns, lower):
		profile.Tier = models.TierSimple
		profile.Kind = models.KindGeneral
	case c.codingContext(lower, recent):
		profile.Tier = models.TierCoding
		profile.Kind = models.KindCoding
	default:
		profile.Tier = models.TierComplex
		profile.Kind = models.KindGeneral
	}

	// Decomposition only makes sense above the simple tier.
	if profile.Tier == models.TierSimple {
		profile.RequiresDecomposition = false
	}

	return profile
}

// codingContext reports whether the request, read together with recent
// turns, is a continuation of coding work: the request mentions a file
// path and the conversation already matched coding patterns.
func (c *Classifier) codingContext(lower string, recent []history.Turn) bool {
	if !strings.Contains(lower, "/") && !strings.Contains(lower, ".") {
		return false
	}
	for _, turn := range recent {
		if anyMatch(codingPatterns, strings.ToLower(turn.Content)) {
			return true
		}
	}
	return false
}
