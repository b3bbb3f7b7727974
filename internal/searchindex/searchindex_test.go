package searchindex

import (
	"context"
	"testing"
	"time"

	"github.com/memorix-dev/memorix-core/internal/types"
)

func obs(id int64, title, narrative, project string, createdAt time.Time) *types.Observation {
	return &types.Observation{
		ID:        id,
		Title:     title,
		Narrative: narrative,
		ProjectID: project,
		CreatedAt: createdAt,
	}
}

func TestSearchFieldBoostPrefersTitleMatch(t *testing.T) {
	ix := New(nil, nil)
	now := time.Now()
	ix.Insert(obs(1, "refresh token rotation", "unrelated narrative text", "proj", now))
	ix.Insert(obs(2, "unrelated title", "discusses refresh token rotation at length", "proj", now))

	hits, err := ix.Search(context.Background(), Query{ProjectIDs: []string{"proj"}, Text: "refresh token"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Observation.ID != 1 {
		t.Fatalf("expected title match to score higher, got order %+v", hits)
	}
}

func TestSearchRespectsProjectScope(t *testing.T) {
	ix := New(nil, nil)
	now := time.Now()
	ix.Insert(obs(1, "auth flow", "", "proj-a", now))
	ix.Insert(obs(2, "auth flow", "", "proj-b", now))

	hits, err := ix.Search(context.Background(), Query{ProjectIDs: []string{"proj-a"}, Text: "auth"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Observation.ID != 1 {
		t.Fatalf("expected only proj-a hit, got %+v", hits)
	}
}

func TestSearchFuzzyMatchesWithinTolerance(t *testing.T) {
	ix := New(nil, nil)
	now := time.Now()
	ix.Insert(obs(1, "authentication", "", "proj", now))

	hits, err := ix.Search(context.Background(), Query{ProjectIDs: []string{"proj"}, Text: "authentification"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected fuzzy match to find the observation, got %+v", hits)
	}
}

func TestTrimToTokenBudgetKeepsLongestPrefix(t *testing.T) {
	costs := []int{30, 40, 35, 50, 20, 25, 60, 10, 45, 30}
	hits := make([]Hit, len(costs))
	for i, c := range costs {
		hits[i] = Hit{Observation: &types.Observation{ID: int64(i), Tokens: c}, Score: float64(len(costs) - i)}
	}

	trimmed := trimToTokenBudget(hits, 120)
	if len(trimmed) != 3 {
		t.Fatalf("expected 3 hits within budget 120, got %d", len(trimmed))
	}
	sum := 0
	for _, h := range trimmed {
		sum += h.Observation.Tokens
	}
	if sum != 105 {
		t.Fatalf("expected summed cost 105, got %d", sum)
	}
}

func TestTrimToTokenBudgetKeepsSoleOversizedHit(t *testing.T) {
	hits := []Hit{{Observation: &types.Observation{ID: 1, Tokens: 200}, Score: 1}}
	trimmed := trimToTokenBudget(hits, 120)
	if len(trimmed) != 1 {
		t.Fatalf("expected the single oversized hit to survive alone, got %d", len(trimmed))
	}
}

func TestTimelineReturnsAnchorAndAdjacentInChronologicalOrder(t *testing.T) {
	now := time.Now()
	observations := []*types.Observation{
		obs(1, "first", "", "proj", now.Add(-4*time.Hour)),
		obs(2, "second", "", "proj", now.Add(-3*time.Hour)),
		obs(3, "third", "", "proj", now.Add(-2*time.Hour)),
		obs(4, "fourth", "", "proj", now.Add(-1*time.Hour)),
		obs(5, "fifth", "", "proj", now),
	}
	out := Timeline(observations, 3, 1, 1)
	if len(out) != 3 || out[0].ID != 2 || out[1].ID != 3 || out[2].ID != 4 {
		t.Fatalf("expected [2,3,4] around anchor 3, got %+v", idsOf(out))
	}
}

func TestTimelineClampsDepthAtSliceBounds(t *testing.T) {
	now := time.Now()
	observations := []*types.Observation{
		obs(1, "first", "", "proj", now.Add(-1*time.Hour)),
		obs(2, "second", "", "proj", now),
	}
	out := Timeline(observations, 1, 3, 3)
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 2 {
		t.Fatalf("expected both observations clamped at bounds, got %+v", idsOf(out))
	}
}

func TestTimelineScopesToAnchorProject(t *testing.T) {
	now := time.Now()
	observations := []*types.Observation{
		obs(1, "other", "", "other-proj", now.Add(-2*time.Hour)),
		obs(2, "first", "", "proj", now.Add(-1*time.Hour)),
		obs(3, "second", "", "proj", now),
	}
	out := Timeline(observations, 3, 3, 3)
	if len(out) != 2 || out[0].ID != 2 || out[1].ID != 3 {
		t.Fatalf("expected only proj-scoped observations, got %+v", idsOf(out))
	}
}

func TestTimelineReturnsNilWhenAnchorMissing(t *testing.T) {
	observations := []*types.Observation{obs(1, "a", "", "proj", time.Now())}
	if out := Timeline(observations, 999, 3, 3); out != nil {
		t.Fatalf("expected nil for an unknown anchor, got %+v", idsOf(out))
	}
}

func idsOf(observations []*types.Observation) []int64 {
	ids := make([]int64, len(observations))
	for i, o := range observations {
		ids[i] = o.ID
	}
	return ids
}

func TestDetailPreservesRequestOrder(t *testing.T) {
	observations := []*types.Observation{
		obs(1, "a", "", "proj", time.Now()),
		obs(2, "b", "", "proj", time.Now()),
		obs(3, "c", "", "proj", time.Now()),
	}
	out := Detail(observations, []int64{3, 1})
	if len(out) != 2 || out[0].ID != 3 || out[1].ID != 1 {
		t.Fatalf("expected request order preserved, got %+v", out)
	}
}

func TestReindexIsIdempotent(t *testing.T) {
	ix := New(nil, nil)
	now := time.Now()
	observations := []*types.Observation{obs(1, "a", "", "proj", now)}

	if errs := ix.Reindex(context.Background(), observations); len(errs) != 0 {
		t.Fatalf("unexpected reindex errors: %v", errs)
	}
	if errs := ix.Reindex(context.Background(), observations); len(errs) != 0 {
		t.Fatalf("unexpected reindex errors on second pass: %v", errs)
	}

	hits, err := ix.Search(context.Background(), Query{ProjectIDs: []string{"proj"}, Text: "a"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly one indexed observation after reindex, got %d", len(hits))
	}
}
