package idgen

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// stopWords are common words stripped when slugging a title; they don't add
// meaning to a topic-key slug.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true,
	"and": true, "or": true, "but": true, "nor": true,
	"is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true,
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)
var multipleUnderscoreRegex = regexp.MustCompile(`_+`)

// SlugGenerator turns observation titles into the `slug` half of a
// `family/slug` topic key (spec §3).
type SlugGenerator struct {
	maxSlugLength int
}

// NewSlugGenerator creates a generator with the default slug length.
func NewSlugGenerator() *SlugGenerator {
	return &SlugGenerator{maxSlugLength: 46}
}

// GenerateSlug converts a title to a lowercase, underscore-separated slug
// with stop words removed.
func (g *SlugGenerator) GenerateSlug(title string) string {
	if title == "" {
		return "untitled"
	}

	slug := strings.ToLower(title)
	slug = nonAlphanumericRegex.ReplaceAllString(slug, " ")
	words := strings.Fields(slug)

	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	if len(filtered) == 0 && len(words) > 0 {
		filtered = []string{words[0]}
	}

	slug = strings.Join(filtered, "_")

	if len(slug) > 0 && !unicode.IsLetter(rune(slug[0])) {
		slug = "n" + slug
	}

	if len(slug) > g.maxSlugLength {
		truncated := slug[:g.maxSlugLength]
		if lastUnderscore := strings.LastIndex(truncated, "_"); lastUnderscore > g.maxSlugLength/2 {
			truncated = truncated[:lastUnderscore]
		}
		slug = truncated
	}

	if len(slug) < 3 {
		slug = slug + strings.Repeat("x", 3-len(slug))
	}

	slug = strings.Trim(slug, "_")
	slug = multipleUnderscoreRegex.ReplaceAllString(slug, "_")

	return slug
}

// GenerateTopicKey builds a `family/slug` topic key from a family and a
// title, disambiguating against existingKeys with a numeric suffix.
func (g *SlugGenerator) GenerateTopicKey(family, title string, existingKeys map[string]bool) string {
	slug := g.GenerateSlug(title)
	base := family + "/" + slug

	key := base
	suffix := 2
	for existingKeys[key] {
		key = base + "_" + strconv.Itoa(suffix)
		suffix++
		if suffix > 99 {
			break
		}
	}
	return key
}
