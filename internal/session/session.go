// Package session implements the Session Lifecycle component (spec §4.J):
// session_start, session_end, and session_context, backed by sessions.json
// under the store's project lock. Session ids are google/uuid v4 strings,
// matching the pack's convention of using that library wherever an opaque
// unique id is needed rather than a hand-rolled scheme.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/memorix-dev/memorix-core/internal/lockfile"
	"github.com/memorix-dev/memorix-core/internal/retention"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// ContextTypes are the observation types surfaced in a session's start
// context bundle (spec §4.J).
var ContextTypes = map[types.ObservationType]bool{
	types.TypeDecision:        true,
	types.TypeGotcha:          true,
	types.TypeProblemSolution: true,
	types.TypeTradeOff:        true,
}

// ContextObservationLimit is the top-N cutoff for the context bundle's
// observation list (spec §4.J: "top-N observations by retention score").
const ContextObservationLimit = 10

// Context is the bundle returned by session_start: the prior session's
// summary, if any, plus the highest-retention-score observations relevant
// to picking the work back up.
type Context struct {
	PreviousSummary string
	Observations    []*types.Observation
}

// Manager runs the session lifecycle against one store.
type Manager struct {
	store *store.Store
}

// New returns a Manager backed by st.
func New(st *store.Store) *Manager {
	return &Manager{store: st}
}

// Start allocates a new active session for agent against projectID and
// returns its context bundle (spec §4.J).
func (m *Manager) Start(projectID, agent string) (*types.Session, Context, error) {
	var created *types.Session
	var ctx Context

	err := lockfile.WithLock(m.store.LockPath(), func() error {
		sessions, err := m.store.ReadSessions()
		if err != nil {
			return err
		}
		observations, err := m.store.ReadObservations()
		if err != nil {
			return err
		}

		ctx.PreviousSummary = lastSummary(sessions, projectID)
		ctx.Observations = topContextObservations(observations, projectID)

		created = &types.Session{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Agent:     agent,
			StartedAt: time.Now(),
			Status:    types.SessionActive,
		}
		sessions = append(sessions, created)
		return m.store.WriteSessions(sessions)
	})
	if err != nil {
		return nil, Context{}, fmt.Errorf("session: start: %w", err)
	}
	return created, ctx, nil
}

// End transitions id's session from active to completed, recording
// summary (spec §4.J). A second call on an already-completed session
// fails with types.KindConflict.
func (m *Manager) End(id, summary string) (*types.Session, error) {
	var result *types.Session
	err := lockfile.WithLock(m.store.LockPath(), func() error {
		sessions, err := m.store.ReadSessions()
		if err != nil {
			return err
		}
		var target *types.Session
		for _, s := range sessions {
			if s.ID == id {
				target = s
				break
			}
		}
		if target == nil {
			return types.NewError(types.KindNotFound, "session.End", fmt.Errorf("session %s not found", id))
		}
		if target.Status == types.SessionCompleted {
			return types.NewError(types.KindConflict, "session.End", fmt.Errorf("session %s already completed", id))
		}
		target.Status = types.SessionCompleted
		target.EndedAt = time.Now()
		target.Summary = summary
		result = target
		return m.store.WriteSessions(sessions)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a read-only view of one session (spec §4.J session_context).
func (m *Manager) Get(id string) (*types.Session, error) {
	sessions, err := m.store.ReadSessions()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, types.NewError(types.KindNotFound, "session.Get", fmt.Errorf("session %s not found", id))
}

// lastSummary finds the most recently ended completed session for
// projectID and returns its summary, or "" if none exists.
func lastSummary(sessions []*types.Session, projectID string) string {
	var latest *types.Session
	for _, s := range sessions {
		if s.ProjectID != projectID || s.Status != types.SessionCompleted {
			continue
		}
		if latest == nil || s.EndedAt.After(latest.EndedAt) {
			latest = s
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Summary
}

// topContextObservations returns the top ContextObservationLimit
// observations of the context-relevant types for projectID, ranked by
// current retention score.
func topContextObservations(observations []*types.Observation, projectID string) []*types.Observation {
	now := time.Now()
	var candidates []*types.Observation
	for _, o := range observations {
		if o.ProjectID != projectID || !ContextTypes[o.Type] {
			continue
		}
		candidates = append(candidates, o)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return retention.Score(candidates[i], now) > retention.Score(candidates[j], now)
	})
	if len(candidates) > ContextObservationLimit {
		candidates = candidates[:ContextObservationLimit]
	}
	return candidates
}
