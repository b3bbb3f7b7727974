package session

import (
	"testing"

	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(st)
}

func TestStartAllocatesUUIDAndActiveStatus(t *testing.T) {
	m := newManager(t)
	s, _, err := m.Start("proj", "claude-code")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.ID == "" || s.Status != types.SessionActive {
		t.Fatalf("expected active session with non-empty id, got %+v", s)
	}
}

func TestEndTransitionsToCompleted(t *testing.T) {
	m := newManager(t)
	s, _, err := m.Start("proj", "agent")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ended, err := m.End(s.ID, "finished the thing")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != types.SessionCompleted || ended.Summary != "finished the thing" {
		t.Fatalf("expected completed session with summary, got %+v", ended)
	}
}

func TestEndTwiceConflicts(t *testing.T) {
	m := newManager(t)
	s, _, err := m.Start("proj", "agent")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.End(s.ID, "done"); err != nil {
		t.Fatalf("End: %v", err)
	}
	_, err = m.End(s.ID, "done again")
	if !types.IsKind(err, types.KindConflict) {
		t.Fatalf("expected Conflict error on double-end, got %v", err)
	}
}

func TestStartSurfacesPreviousSummary(t *testing.T) {
	m := newManager(t)
	s1, _, err := m.Start("proj", "agent")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.End(s1.ID, "previous work summary"); err != nil {
		t.Fatalf("End: %v", err)
	}
	_, ctx, err := m.Start("proj", "agent")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ctx.PreviousSummary != "previous work summary" {
		t.Fatalf("expected previous summary to carry over, got %q", ctx.PreviousSummary)
	}
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	m := newManager(t)
	_, err := m.Get("does-not-exist")
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}
