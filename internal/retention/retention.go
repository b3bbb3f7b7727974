// Package retention implements the decay-scoring and archival engine
// (spec §4.I): a per-observation score blending age, access frequency,
// and type, with immunity rules that keep causally important memories out
// of the archive regardless of score.
package retention

import (
	"math"
	"time"

	"github.com/memorix-dev/memorix-core/internal/lockfile"
	"github.com/memorix-dev/memorix-core/internal/searchindex"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// Class is the score-based classification of an observation (spec §4.I).
type Class string

const (
	ClassActive           Class = "active"
	ClassStale            Class = "stale"
	ClassArchiveCandidate Class = "archive-candidate"
)

// Classification boundaries (spec §4.I): score >5 is active, 1-5 is stale,
// <1 is an archive candidate.
const (
	ActiveThreshold = 5.0
	StaleThreshold  = 1.0
)

// DefaultArchiveThreshold is the caller-overridable default passed to
// Archive when the config layer (internal/config) supplies none (Open
// Question in spec §9, decided in DESIGN.md: archive threshold is a
// caller parameter, not a hard-coded constant).
const DefaultArchiveThreshold = StaleThreshold

// baseByType gives the highest weight to decision and gotcha records and
// the lowest to session-request noise (spec §4.I).
var baseByType = map[types.ObservationType]float64{
	types.TypeDecision:        10,
	types.TypeGotcha:          10,
	types.TypeTradeOff:        8,
	types.TypeProblemSolution: 7,
	types.TypeWhyItExists:     6,
	types.TypeDiscovery:       5,
	types.TypeHowItWorks:      4,
	types.TypeWhatChanged:     4,
	types.TypeSessionRequest:  2,
}

const defaultBase = 4.0

// halfLifeHoursByType is the decay half-life for each observation type; a
// longer half-life means the score falls off more slowly with age.
var halfLifeHoursByType = map[types.ObservationType]float64{
	types.TypeDecision:        24 * 90,
	types.TypeGotcha:          24 * 60,
	types.TypeTradeOff:        24 * 60,
	types.TypeProblemSolution: 24 * 30,
	types.TypeWhyItExists:     24 * 45,
	types.TypeDiscovery:       24 * 21,
	types.TypeHowItWorks:      24 * 21,
	types.TypeWhatChanged:     24 * 14,
	types.TypeSessionRequest:  24 * 3,
}

const defaultHalfLifeHours = 24 * 14.0

// CausalHalfLifeMultiplier extends an observation's half-life when the
// extractor flagged it as containing causal language (spec §4.I: "Halflife
// is longer for records with hasCausalLanguage = true").
const CausalHalfLifeMultiplier = 2.0

// immuneTypes are never archived regardless of score (spec §4.I).
var immuneTypes = map[types.ObservationType]bool{
	types.TypeDecision: true,
	types.TypeGotcha:   true,
	types.TypeTradeOff: true,
}

// ImmuneAccessCount is the access-count floor that grants archival
// immunity outright (spec §4.I: "accessCount ≥ 5").
const ImmuneAccessCount = 5

// Score computes o's retention score as of now.
func Score(o *types.Observation, now time.Time) float64 {
	base, ok := baseByType[o.Type]
	if !ok {
		base = defaultBase
	}
	halfLife, ok := halfLifeHoursByType[o.Type]
	if !ok {
		halfLife = defaultHalfLifeHours
	}
	if o.HasCausalLanguage {
		halfLife *= CausalHalfLifeMultiplier
	}

	ageHours := now.Sub(o.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	decay := math.Exp(-ageHours / halfLife)
	accessFactor := 1 + math.Log(1+float64(o.AccessCount))

	return base * decay * accessFactor
}

// Classify buckets o by its current score (spec §4.I).
func Classify(o *types.Observation, now time.Time) Class {
	score := Score(o, now)
	switch {
	case score > ActiveThreshold:
		return ClassActive
	case score >= StaleThreshold:
		return ClassStale
	default:
		return ClassArchiveCandidate
	}
}

// Immune reports whether o is exempt from archival regardless of score
// (spec §4.I).
func Immune(o *types.Observation) bool {
	return o.HasCausalLanguage || immuneTypes[o.Type] || o.AccessCount >= ImmuneAccessCount
}

// Engine runs archival against one store, removing archived observations
// from the search index as they're moved (spec §4.I).
type Engine struct {
	store *store.Store
	index *searchindex.Index
}

// New returns an Engine backed by st, removing archived ids from ix.
func New(st *store.Store, ix *searchindex.Index) *Engine {
	return &Engine{store: st, index: ix}
}

// Result summarizes one archive pass.
type Result struct {
	ArchivedCount int
	ArchivedIDs   []int64
}

// Archive moves every non-immune observation scoring below threshold from
// the live set into the archive file, removing it from the search index,
// all under the store's lock (spec §4.I). Archival never runs in reverse:
// nothing ever moves from the archive back into the live set here.
func (e *Engine) Archive(threshold float64) (*Result, error) {
	result := &Result{}
	now := time.Now()

	err := lockfile.WithLock(e.store.LockPath(), func() error {
		live, err := e.store.ReadObservations()
		if err != nil {
			return err
		}
		archived, err := e.store.ReadArchive()
		if err != nil {
			return err
		}

		var remaining []*types.Observation
		for _, o := range live {
			if Immune(o) || Score(o, now) >= threshold {
				remaining = append(remaining, o)
				continue
			}
			archived = append(archived, o)
			result.ArchivedIDs = append(result.ArchivedIDs, o.ID)
		}
		result.ArchivedCount = len(result.ArchivedIDs)
		if result.ArchivedCount == 0 {
			return nil
		}

		if err := e.store.WriteObservations(remaining); err != nil {
			return err
		}
		return e.store.WriteArchive(archived)
	})
	if err != nil {
		return nil, err
	}

	if e.index != nil {
		for _, id := range result.ArchivedIDs {
			e.index.Remove(id)
		}
	}
	return result, nil
}

// Stats counts live observations by classification, for memorixctl stats
// and doctor (SPEC_FULL.md §6.E).
type Stats struct {
	Active           int
	Stale            int
	ArchiveCandidate int
}

// ClassifyAll computes classification counts over a live observation set
// without mutating anything.
func ClassifyAll(observations []*types.Observation, now time.Time) Stats {
	var s Stats
	for _, o := range observations {
		switch Classify(o, now) {
		case ClassActive:
			s.Active++
		case ClassStale:
			s.Stale++
		default:
			s.ArchiveCandidate++
		}
	}
	return s
}
