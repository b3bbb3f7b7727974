// Package tokencount estimates the token cost of an observation without a
// real tokenizer dependency: a chars/4 heuristic, the same rule of thumb
// used throughout LLM tooling when no vocabulary-aware tokenizer is wired
// in. The corpus carries no tokenizer library (no tiktoken-style binding
// appears in any example's go.mod), so this is a deliberate stdlib-only
// component — see DESIGN.md.
package tokencount

import "github.com/memorix-dev/memorix-core/internal/types"

const charsPerToken = 4

// Estimate returns the token cost of an observation's enriched text. It is
// a pure function of (title, narrative, facts, filesModified, concepts),
// matching the invariant in spec §3.
func Estimate(o *types.Observation) int {
	total := len(o.Title) + len(o.Narrative)
	for _, f := range o.Facts {
		total += len(f)
	}
	for _, f := range o.FilesModified {
		total += len(f)
	}
	for _, c := range o.Concepts {
		total += len(c)
	}
	if total == 0 {
		return 0
	}
	tokens := total / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// EstimateText returns the token cost of a raw string, for callers that
// need to budget text that isn't yet an Observation (e.g. an embedding
// request).
func EstimateText(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
