// Package searchindex implements the hybrid search layer (spec §4.F):
// field-boosted lexical matching with fuzzy tolerance, an optional vector
// layer, and the three progressive-disclosure read paths.
//
// The lexical layer is grounded on the dual-purpose Aho-Corasick dictionary
// in KittClouds-Go-Machine-n/GoKitt (pkg/implicit-matcher/dictionary.go),
// turned around: there, a fixed entity dictionary scans arbitrary
// documents; here, a query's tokens are compiled into the automaton and
// scanned against each observation's per-field text, since the corpus of
// documents changes on every write while a single query's term set is
// small and short-lived. derekparker/trie/v3 backs prefix lookups and
// candidate generation for the fuzzy-tolerance rule, with the effort-bound
// edit distance check in tokens.go deciding true matches.
package searchindex

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/ahocorasick"
	trie "github.com/derekparker/trie/v3"

	"github.com/memorix-dev/memorix-core/internal/embedding"
	"github.com/memorix-dev/memorix-core/internal/tokencount"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// VectorWeight and TextWeight are the hybrid-mode blend weights (spec
// §4.F rule 4).
const (
	TextWeight         = 0.6
	VectorWeight       = 0.4
	VectorSimThreshold = 0.5
)

// Hit is one scored search result (Layer 1, spec §4.F).
type Hit struct {
	Observation   *types.Observation
	Score         float64
	MatchedFields []string
	Fuzzy         bool
}

// Query is the input to Search.
type Query struct {
	ProjectIDs []string // alias-expanded set to search across
	Text       string
	Since      *int64 // unix seconds, inclusive
	Until      *int64 // unix seconds, inclusive
	Limit      int
	MaxTokens  int // 0 means no token-budget trimming
	UseVector  bool
}

// Index holds the in-memory document set for one store, rebuildable from
// observations.json at any time (reindex is always safe).
type Index struct {
	mu      sync.RWMutex
	docs    map[int64]*types.Observation
	prefix  *trie.Trie
	vectors VectorStore
	cache   *embedding.Cache
}

// New returns an empty Index. vectors may be nil to disable the vector
// layer entirely (hybrid search then degrades to lexical-only).
func New(vectors VectorStore, cache *embedding.Cache) *Index {
	return &Index{
		docs:    map[int64]*types.Observation{},
		prefix:  trie.New(),
		vectors: vectors,
		cache:   cache,
	}
}

// Insert adds or replaces an observation in the index.
func (ix *Index) Insert(o *types.Observation) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs[o.ID] = o
	for _, field := range searchableFieldOrder {
		for _, tok := range tokenize(fieldText(o, field)) {
			ix.prefix.Add(tok, o.ID)
		}
	}
}

// UpsertVector pushes a single precomputed embedding into the vector layer,
// for callers that embed incrementally on write rather than waiting for a
// full Reindex (spec §4.G). A no-op when no VectorStore is configured.
func (ix *Index) UpsertVector(id int64, vector []float32) error {
	if ix.vectors == nil || vector == nil {
		return nil
	}
	return ix.vectors.Upsert(id, vector)
}

// Close releases the underlying vector store, if any (spec §4.F.1: the
// sqlite-vec backend holds an open database handle).
func (ix *Index) Close() error {
	if ix.vectors == nil {
		return nil
	}
	return ix.vectors.Close()
}

// Remove drops an observation from the index (retention archival, spec §4.I).
func (ix *Index) Remove(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.docs, id)
	if ix.vectors != nil {
		_ = ix.vectors.Remove(id)
	}
}

// Reindex replaces the entire document set, rebuilding the prefix trie and
// (if a VectorStore is configured and the provider is non-null) the vector
// layer from scratch. The lexical rebuild always completes. If the batch
// embedding call fails, no vectors are stored and that single error is
// returned; vector-store upsert failures are collected without stopping
// the rest of the batch (spec §4.G).
func (ix *Index) Reindex(ctx context.Context, observations []*types.Observation) []error {
	ix.mu.Lock()
	ix.docs = make(map[int64]*types.Observation, len(observations))
	ix.prefix = trie.New()
	for _, o := range observations {
		ix.docs[o.ID] = o
		for _, field := range searchableFieldOrder {
			for _, tok := range tokenize(fieldText(o, field)) {
				ix.prefix.Add(tok, o.ID)
			}
		}
	}
	ix.mu.Unlock()

	if ix.vectors == nil || ix.cache == nil {
		return nil
	}

	var errs []error
	texts := make([]string, len(observations))
	for i, o := range observations {
		texts[i] = o.SearchableText()
	}
	vectors, err := ix.cache.EmbedBatch(ctx, texts)
	if err != nil {
		return []error{err}
	}
	for i, v := range vectors {
		if v == nil {
			continue
		}
		if err := ix.vectors.Upsert(observations[i].ID, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Search executes Layer 1 of progressive disclosure (spec §4.F): field-
// boosted lexical scoring with fuzzy tolerance, optional vector blending,
// since/until filtering, and token-budget trimming.
func (ix *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	ix.mu.RLock()
	candidates := ix.matchingDocs(q)
	ix.mu.RUnlock()

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c)
	}

	if q.UseVector && ix.vectors != nil && ix.cache != nil && strings.TrimSpace(q.Text) != "" {
		qv, err := ix.cache.Embed(ctx, q.Text)
		if err == nil && qv != nil {
			hits = blendVectorScores(hits, qv, ix.vectors)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	hits = filterByTimeRange(hits, q.Since, q.Until)

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	if q.MaxTokens > 0 {
		hits = trimToTokenBudget(hits, q.MaxTokens)
	}

	for i := range hits {
		hits[i].Observation.AccessCount++
	}

	return hits, nil
}

// matchingDocs scans every in-scope document's searchable fields against
// the query's tokens via Aho-Corasick, falling back to the prefix trie and
// bounded edit distance for fuzzy recall (spec §4.F rules 1-4).
func (ix *Index) matchingDocs(q Query) []Hit {
	inScope := map[string]bool{}
	for _, id := range q.ProjectIDs {
		inScope[id] = true
	}

	queryTokens := tokenize(q.Text)
	if len(queryTokens) == 0 {
		var all []Hit
		for _, o := range ix.docs {
			if len(inScope) == 0 || inScope[o.ProjectID] {
				all = append(all, Hit{Observation: o, Score: 0})
			}
		}
		return all
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(queryTokens).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil
	}

	tolerance := 0
	for _, t := range queryTokens {
		if ft := fuzzyTolerance(t); ft > tolerance {
			tolerance = ft
		}
	}
	fuzzyCandidates := ix.fuzzyCandidateTokens(queryTokens, tolerance)

	var out []Hit
	for _, o := range ix.docs {
		if len(inScope) > 0 && !inScope[o.ProjectID] {
			continue
		}

		var score float64
		var exactMatched []string
		fuzzyOnly := false

		for _, field := range searchableFieldOrder {
			text := fieldText(o, field)
			if text == "" {
				continue
			}
			exactHit := len(automaton.FindAllOverlapping([]byte(strings.ToLower(text)))) > 0
			fuzzyHit := false
			if !exactHit && len(fuzzyCandidates) > 0 {
				for _, tok := range tokenize(text) {
					if fuzzyCandidates[tok] {
						fuzzyHit = true
						break
					}
				}
			}
			if exactHit {
				score += fieldBoosts[field]
				exactMatched = append(exactMatched, field)
			} else if fuzzyHit {
				score += fieldBoosts[field]
				fuzzyOnly = true
			}
		}

		if score > 0 {
			// A hit with no exact field match is labeled generically as
			// "fuzzy" rather than listing the fields it happened to hit by
			// edit distance (spec §4.F rule 7).
			matched := exactMatched
			if len(exactMatched) == 0 && fuzzyOnly {
				matched = []string{"fuzzy"}
			}
			out = append(out, Hit{Observation: o, Score: score, MatchedFields: matched, Fuzzy: fuzzyOnly})
		}
	}
	return out
}

// fuzzyCandidateTokens expands queryTokens to every indexed token within
// tolerance edits, using the prefix trie to cheaply shortlist same-prefix
// tokens before running the exact edit-distance check.
func (ix *Index) fuzzyCandidateTokens(queryTokens []string, tolerance int) map[string]bool {
	if tolerance == 0 {
		return nil
	}
	out := map[string]bool{}
	for _, qt := range queryTokens {
		prefixLen := 1
		if len(qt) < prefixLen {
			continue
		}
		for _, node := range ix.prefix.PrefixSearch(qt[:prefixLen]) {
			if levenshtein(qt, node, tolerance) <= tolerance {
				out[node] = true
			}
		}
	}
	return out
}

func blendVectorScores(hits []Hit, queryVector []float32, vectors VectorStore) []Hit {
	scored, err := vectors.TopK(queryVector, len(hits)+32, VectorSimThreshold)
	if err != nil {
		return hits
	}
	byID := map[int64]float64{}
	for _, s := range scored {
		byID[s.ID] = s.Score
	}
	for i := range hits {
		if vs, ok := byID[hits[i].Observation.ID]; ok {
			hits[i].Score = hits[i].Score*TextWeight + vs*VectorWeight
		} else {
			hits[i].Score *= TextWeight
		}
	}
	return hits
}

func filterByTimeRange(hits []Hit, since, until *int64) []Hit {
	if since == nil && until == nil {
		return hits
	}
	out := hits[:0]
	for _, h := range hits {
		t := h.Observation.CreatedAt.Unix()
		if since != nil && t < *since {
			continue
		}
		if until != nil && t > *until {
			continue
		}
		out = append(out, h)
	}
	return out
}

// trimToTokenBudget keeps the longest score-ordered prefix whose combined
// token cost stays within maxTokens, except when even the single highest
// hit exceeds the budget: that hit is kept alone so the caller always gets
// at least one result (spec §4.F step 6).
func trimToTokenBudget(hits []Hit, maxTokens int) []Hit {
	if len(hits) == 0 {
		return hits
	}
	sum := 0
	cut := 0
	for i, h := range hits {
		cost := h.Observation.Tokens
		if cost == 0 {
			cost = tokencount.Estimate(h.Observation)
		}
		if sum+cost > maxTokens {
			break
		}
		sum += cost
		cut = i + 1
	}
	if cut == 0 {
		return hits[:1]
	}
	return hits[:cut]
}

// Timeline executes Layer 2: the anchor observation plus depthBefore entries
// immediately preceding it and depthAfter entries immediately following it
// in createdAt order, scoped to the anchor's own project (spec §4.F: "the
// anchor plus adjacent observations"). The caller passes the authoritative
// slice (from the store, not the index) since timeline reads must reflect
// writes that haven't been reindexed yet. depthBefore and depthAfter default
// to 3 when <= 0. Returns nil if anchorID isn't found.
func Timeline(observations []*types.Observation, anchorID int64, depthBefore, depthAfter int) []*types.Observation {
	if depthBefore <= 0 {
		depthBefore = 3
	}
	if depthAfter <= 0 {
		depthAfter = 3
	}

	var anchor *types.Observation
	for _, o := range observations {
		if o.ID == anchorID {
			anchor = o
			break
		}
	}
	if anchor == nil {
		return nil
	}

	var scoped []*types.Observation
	for _, o := range observations {
		if o.ProjectID == anchor.ProjectID {
			scoped = append(scoped, o)
		}
	}
	sort.SliceStable(scoped, func(i, j int) bool { return scoped[i].CreatedAt.Before(scoped[j].CreatedAt) })

	anchorIdx := -1
	for i, o := range scoped {
		if o.ID == anchorID {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return nil
	}

	start := anchorIdx - depthBefore
	if start < 0 {
		start = 0
	}
	end := anchorIdx + depthAfter + 1
	if end > len(scoped) {
		end = len(scoped)
	}
	return scoped[start:end]
}

// Detail executes Layer 3: direct lookup by id against the authoritative
// slice, preserving request order.
func Detail(observations []*types.Observation, ids []int64) []*types.Observation {
	byID := make(map[int64]*types.Observation, len(observations))
	for _, o := range observations {
		byID[o.ID] = o
	}
	out := make([]*types.Observation, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
