package domain

import "time"

// SessionStatus is the session lifecycle state machine:
// starting -> active <-> idle -> stopping -> stopped. Stopped is reachable
// from every state and terminal.
type SessionStatus string

const (
	SessionStarting SessionStatus = "starting"
	SessionActive   SessionStatus = "active"
	SessionIdle     SessionStatus = "idle"
	SessionStopping SessionStatus = "stopping"
	SessionStopped  SessionStatus = "stopped"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStarting: {SessionActive, SessionStopping, SessionStopped},
	SessionActive:   {SessionIdle, SessionStopping, SessionStopped},
	SessionIdle:     {SessionActive, SessionStopping, SessionStopped},
	SessionStopping: {SessionStopped},
}

// CanTransitionTo reports whether the lifecycle may move s to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the session has finished.
func (s SessionStatus) Terminal() bool { return s == SessionStopped }

// TokenUsage holds the cumulative token counters for a session. Counters only
// grow; AddTokenUsage applies non-negative deltas.
type TokenUsage struct {
	Input    int64
	Output   int64
	Thinking int64
}

// Add returns the sum of u and delta, field by field.
func (u TokenUsage) Add(delta TokenUsage) TokenUsage {
	return TokenUsage{
		Input:    u.Input + delta.Input,
		Output:   u.Output + delta.Output,
		Thinking: u.Thinking + delta.Thinking,
	}
}

// Total is the blended counter used for coarse cost reporting.
func (u TokenUsage) Total() int64 { return u.Input + u.Output + u.Thinking }

// Session is an ephemeral handle to one execution attempt under a role. Key
// is the externally visible identifier (caller-suppliable); ID is always
// generated and distinct from the key.
type Session struct {
	Key            string
	ID             string
	RoleID         RoleID
	WorkItemID     WorkID
	Label          string
	Task           string
	Status         SessionStatus
	TokenUsage     TokenUsage
	ExitCode       *int
	Error          string
	SpawnedAt      time.Time
	LastActivityAt time.Time
}

// SessionInput carries the caller-supplied fields for Track. Key is optional;
// the store generates one when empty.
type SessionInput struct {
	Key        string
	RoleID     RoleID
	WorkItemID WorkID
	Label      string
	Task       string
}

// SessionPatch carries a partial update; nil fields are left untouched.
type SessionPatch struct {
	Label *string
	Task  *string
	Error *string
}
