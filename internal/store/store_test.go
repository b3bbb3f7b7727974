package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/memorix-dev/memorix-core/internal/types"
)

func TestReadObservationsMissingIsEmpty(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	obs, err := s.ReadObservations()
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected empty, got %v", obs)
	}
}

func TestObservationsRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []*types.Observation{
		{ID: 1, EntityName: "auth", Type: types.TypeDecision, Title: "JWT refresh", CreatedAt: time.Now().UTC()},
	}
	if err := s.WriteObservations(want); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	got, err := s.ReadObservations()
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(got) != 1 || got[0].Title != "JWT refresh" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestCounterDefaultsToOne(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c, err := s.ReadCounter()
	if err != nil {
		t.Fatalf("ReadCounter: %v", err)
	}
	if c.NextID != 1 {
		t.Errorf("expected default NextID 1, got %d", c.NextID)
	}
}

func TestReadObservationsRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ObservationsFile), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write invalid json: %v", err)
	}
	if _, err := s.ReadObservations(); err == nil {
		t.Fatal("expected IntegrityError for invalid JSON")
	} else if !types.IsKind(err, types.KindIntegrityError) {
		t.Errorf("expected IntegrityError, got %v", err)
	}
}

func TestFlattenSubdirsMergesAndBacksUp(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := New(filepath.Join(base, "oldproject"))
	if err != nil {
		t.Fatalf("New sub: %v", err)
	}
	if err := sub.WriteObservations([]*types.Observation{
		{ID: 1, Title: "legacy note", CreatedAt: time.Unix(100, 0).UTC()},
	}); err != nil {
		t.Fatalf("write sub obs: %v", err)
	}

	if err := s.WriteObservations([]*types.Observation{
		{ID: 1, Title: "fresh note", CreatedAt: time.Unix(200, 0).UTC()},
	}); err != nil {
		t.Fatalf("write base obs: %v", err)
	}

	result, err := s.FlattenSubdirs()
	if err != nil {
		t.Fatalf("FlattenSubdirs: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result")
	}
	if result.ObservationCount != 2 {
		t.Errorf("expected 2 merged observations, got %d", result.ObservationCount)
	}

	got, err := s.ReadObservations()
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected sequential reassigned ids, got %+v", got)
	}
	if got[0].Title != "legacy note" {
		t.Errorf("expected createdAt-ascending order, got %+v", got)
	}

	again, err := FindFlattenableSubdirs(base)
	if err != nil {
		t.Fatalf("FindFlattenableSubdirs: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected migration to be idempotent, still found %v", again)
	}
}
