// Package extractor mines free text for file paths, identifier-like
// tokens, and causal-language markers (spec §4.D). It is a pure function
// of its input: no store, no network, no state.
//
// Token filtering reuses the stopword list the rest of the example corpus
// leans on for the same job (github.com/orsinium-labs/stopwords), rather
// than hand-maintaining an English stopword list here.
package extractor

import (
	"regexp"
	"strings"

	"github.com/orsinium-labs/stopwords"
)

// sourceExtensions is the configurable set of extensions that make a
// path-like token count as a file reference.
var sourceExtensions = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true, ".jsx": true,
	".ts": true, ".tsx": true, ".java": true, ".kt": true, ".c": true,
	".h": true, ".cpp": true, ".hpp": true, ".cc": true, ".rb": true,
	".php": true, ".cs": true, ".swift": true, ".scala": true, ".sql": true,
	".sh": true, ".bash": true, ".zsh": true, ".yaml": true, ".yml": true,
	".json": true, ".toml": true, ".md": true, ".html": true, ".css": true,
	".scss": true, ".vue": true, ".svelte": true, ".proto": true,
	".graphql": true, ".lua": true, ".ex": true, ".exs": true, ".clj": true,
	".hs": true, ".ml": true, ".zig": true, ".dart": true,
}

// filePathPattern matches path-like tokens: at least one path separator
// followed by a recognized extension.
var filePathPattern = regexp.MustCompile(`(?:[./][\w.\-/]*)?[\w.\-]+/[\w.\-/]+\.[A-Za-z0-9]{1,8}\b`)

// identifierPattern matches camelCase or snake_case tokens.
var identifierPattern = regexp.MustCompile(`\b([a-z][a-zA-Z0-9]*[A-Z][a-zA-Z0-9]*|[a-zA-Z][a-zA-Z0-9]*(?:_[a-zA-Z0-9]+)+)\b`)

// causalMarkers is a small, language-aware set of causal-language cues.
// English and Chinese per spec §4.D; additional languages can be added
// here without touching callers.
var causalMarkers = []string{
	"because", "so that", "therefore", "as a result", "due to",
	"in order to", "which means", "since ", "this caused", "leads to",
	"因为", "所以", "因此", "导致", "为了",
}

var enStopwords = stopwords.MustGet("en")

// Extracted is the output of mining free text (spec §4.D).
type Extracted struct {
	Files             []string
	Identifiers       []string
	HasCausalLanguage bool
}

// Extract mines text for file paths, identifier tokens, and causal language.
func Extract(text string) Extracted {
	return Extracted{
		Files:             extractFiles(text),
		Identifiers:       extractIdentifiers(text),
		HasCausalLanguage: hasCausalLanguage(text),
	}
}

func extractFiles(text string) []string {
	matches := filePathPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		ext := extensionOf(m)
		if !sourceExtensions[ext] {
			continue
		}
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func extensionOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

func extractIdentifiers(text string) []string {
	matches := identifierPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		lower := strings.ToLower(m)
		if enStopwords.Contains(lower) {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, m)
	}
	return out
}

func hasCausalLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range causalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EnrichConcepts returns a deduplicated concatenation of user-supplied
// concepts with extractor-derived identifiers (spec §4.D).
func EnrichConcepts(userConcepts []string, extracted Extracted) []string {
	seen := make(map[string]bool, len(userConcepts))
	out := make([]string, 0, len(userConcepts)+len(extracted.Identifiers))
	for _, c := range userConcepts {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	for _, id := range extracted.Identifiers {
		key := strings.ToLower(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}

// EnrichFiles appends extracted files to userFiles that are not already
// present under case-insensitive comparison (spec §4.D).
func EnrichFiles(userFiles []string, extractedFiles []string) []string {
	seen := make(map[string]bool, len(userFiles))
	out := make([]string, 0, len(userFiles)+len(extractedFiles))
	for _, f := range userFiles {
		seen[strings.ToLower(f)] = true
		out = append(out, f)
	}
	for _, f := range extractedFiles {
		key := strings.ToLower(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
