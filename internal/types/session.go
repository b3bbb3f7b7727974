package types

import "time"

// SessionStatus is the two-state lifecycle of a Session (spec §3).
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session represents one open/close window for an agent working against a project.
type Session struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"projectId"`
	Agent     string        `json:"agent"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitempty"`
	Status    SessionStatus `json:"status"`
	Summary   string        `json:"summary,omitempty"`
}
