package classify

import "regexp"

// Pattern tables for request classification. Checked in order of
// specificity: creative, research, coding, complex, simple. An input
// matching nothing falls through to the complex tier.

var creativePatterns = compileAll(
	`\b(story|poem|article|fiction|narrative|tale)\b`,
	`\bcreative\b.*\b(story|writing|content|ideas)\b`,
	`\b(write|compose).*\b(story|poem|article)\b`,
	`\b(imaginative|artistic)\b`,
	`\b(brainstorm|inspiration)\b`,
)

var researchPatterns = compileAll(
	`\b(research|investigate|find information|search for|look up)\b`,
	`\b(summarize|synthesize|compile|gather).*\binformation\b`,
	`\b(latest|recent|current|trends|news)\b`,
	`\b(documentation|docs|reference|manual)\b`,
)

var codingPatterns = compileAll(
	`\b(implement|code|program|function|class|method)\b`,
	`\b(create|write|build).*\b(function|class|method|program|script|code|application)\b`,
	`\b(debug|fix|error|bug|refactor|optimize)\b`,
	`\b(python|javascript|typescript|java|rust|golang|sql)\b`,
	`\b(algorithm|data structure|api|library|framework)\b`,
	`\.(py|js|ts|java|cpp|rs|go)\b`,
)

var complexPatterns = compileAll(
	`\b(analyze|compare|evaluate|assess|explain why)\b`,
	`\b(strategy|approach|methodology|architecture)\b`,
	`\b(pros and cons|advantages|disadvantages|tradeoffs)\b`,
	`\b(design|plan).*\b(system|project)\b`,
)

var simplePatterns = compileAll(
	`\b(what is|what are|who is)\b.*\?`,
	`\b\d+\s*[\+\-\*\/]\s*\d+`,
	`^\s*(hello|hi|hey)\b`,
	`\b(define|meaning of)\b`,
	`\b(true or false)\b`,
)

// Decomposition signals: requests naming multiple independent
// deliverables that can proceed in parallel.
var decompositionPatterns = compileAll(
	`\b\d+\s+(files|modules|components|endpoints|pages|scripts|tests)\b`,
	`\b(create|build|set up|scaffold)\b.*\bproject\b.*\bwith\b`,
	`\beach\s+of\b`,
	`\b(and|then)\b.*\b(and|then)\b.*\b(and|then)\b`,
	`(^|\n)\s*[-*]\s+\S+.*\n\s*[-*]\s+`,
	`(^|\n)\s*\d+[\.\)]\s+\S+.*\n\s*\d+[\.\)]\s+`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
