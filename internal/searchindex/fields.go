package searchindex

import (
	"strings"

	"github.com/memorix-dev/memorix-core/internal/types"
)

// field names exactly the six searchable fields in spec §4.F rule 2; no
// other Observation field is ever searched.
const (
	fieldTitle         = "title"
	fieldEntityName    = "entityName"
	fieldConcepts      = "concepts"
	fieldNarrative     = "narrative"
	fieldFacts         = "facts"
	fieldFilesModified = "filesModified"
)

// fieldBoosts are applied when scoring a lexical match (spec §4.F rule 2).
var fieldBoosts = map[string]float64{
	fieldTitle:         3.0,
	fieldEntityName:    2.0,
	fieldConcepts:      1.5,
	fieldNarrative:     1.0,
	fieldFacts:         1.0,
	fieldFilesModified: 0.5,
}

// searchableFieldOrder fixes iteration order for determinism.
var searchableFieldOrder = []string{
	fieldTitle, fieldEntityName, fieldConcepts, fieldNarrative, fieldFacts, fieldFilesModified,
}

// fieldText returns the raw text of one searchable field on an observation.
func fieldText(o *types.Observation, field string) string {
	switch field {
	case fieldTitle:
		return o.Title
	case fieldEntityName:
		return o.EntityName
	case fieldConcepts:
		return strings.Join(o.Concepts, " ")
	case fieldNarrative:
		return o.Narrative
	case fieldFacts:
		return strings.Join(o.Facts, " ")
	case fieldFilesModified:
		return strings.Join(o.FilesModified, " ")
	default:
		return ""
	}
}
