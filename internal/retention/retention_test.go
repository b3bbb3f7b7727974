package retention

import (
	"testing"
	"time"

	"github.com/memorix-dev/memorix-core/internal/searchindex"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

func TestScoreDecaysWithAge(t *testing.T) {
	now := time.Now()
	fresh := &types.Observation{Type: types.TypeDiscovery, CreatedAt: now}
	old := &types.Observation{Type: types.TypeDiscovery, CreatedAt: now.Add(-1000 * time.Hour)}

	if Score(old, now) >= Score(fresh, now) {
		t.Fatalf("expected older observation to score lower")
	}
}

func TestClassifyBoundaries(t *testing.T) {
	now := time.Now()
	// A very fresh, frequently accessed decision should be active.
	active := &types.Observation{Type: types.TypeDecision, CreatedAt: now, AccessCount: 3}
	if Classify(active, now) != ClassActive {
		t.Fatalf("expected fresh decision to classify active, got %v", Classify(active, now))
	}

	// A very old session-request with no causal language should be an
	// archive candidate.
	stale := &types.Observation{Type: types.TypeSessionRequest, CreatedAt: now.Add(-24 * 30 * time.Hour)}
	if Classify(stale, now) != ClassArchiveCandidate {
		t.Fatalf("expected stale session-request to be an archive candidate, got %v", Classify(stale, now))
	}
}

func TestImmunityProtectsDecisionTypeRegardlessOfAge(t *testing.T) {
	// S4: a decision-type observation aged 10,000h with no accesses still
	// must not be archived.
	now := time.Now()
	o := &types.Observation{
		Type:      types.TypeDecision,
		CreatedAt: now.Add(-10000 * time.Hour),
	}
	if !Immune(o) {
		t.Fatalf("expected decision type to be immune from archival")
	}
}

func TestImmunityFromHighAccessCount(t *testing.T) {
	o := &types.Observation{Type: types.TypeDiscovery, AccessCount: ImmuneAccessCount}
	if !Immune(o) {
		t.Fatalf("expected accessCount >= %d to grant immunity", ImmuneAccessCount)
	}
}

func TestArchiveMovesOnlyNonImmuneLowScoreObservations(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	now := time.Now()
	live := []*types.Observation{
		{ID: 1, Type: types.TypeSessionRequest, CreatedAt: now.Add(-24 * 365 * time.Hour)}, // should archive
		{ID: 2, Type: types.TypeDecision, CreatedAt: now.Add(-24 * 365 * time.Hour)},       // immune
	}
	if err := st.WriteObservations(live); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	if err := st.WriteCounter(store.Counter{NextID: 3}); err != nil {
		t.Fatalf("WriteCounter: %v", err)
	}

	ix := searchindex.New(nil, nil)
	ix.Insert(live[0])
	ix.Insert(live[1])

	eng := New(st, ix)
	result, err := eng.Archive(DefaultArchiveThreshold)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if result.ArchivedCount != 1 || result.ArchivedIDs[0] != 1 {
		t.Fatalf("expected only observation 1 archived, got %+v", result)
	}

	remaining, err := st.ReadObservations()
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("expected observation 2 to remain live, got %+v", remaining)
	}

	archived, err := st.ReadArchive()
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != 1 {
		t.Fatalf("expected observation 1 in archive, got %+v", archived)
	}
}

func TestClassifyAllCountsByClass(t *testing.T) {
	now := time.Now()
	observations := []*types.Observation{
		{Type: types.TypeDecision, CreatedAt: now},
		{Type: types.TypeSessionRequest, CreatedAt: now.Add(-24 * 365 * time.Hour)},
	}
	stats := ClassifyAll(observations, now)
	if stats.Active != 1 || stats.ArchiveCandidate != 1 {
		t.Fatalf("expected 1 active and 1 archive candidate, got %+v", stats)
	}
}
