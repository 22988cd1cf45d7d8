package domain

import "time"

type WorkID string

// WorkType classifies a work item. The set is open: stores accept unknown
// types so new kinds can be introduced without a schema change.
type WorkType string

const (
	WorkTypeTask     WorkType = "task"
	WorkTypePipeline WorkType = "pipeline"
	WorkTypeBatch    WorkType = "batch"
	WorkTypeReview   WorkType = "review"
)

// WorkStatus is the work item state machine.
type WorkStatus string

const (
	WorkPending   WorkStatus = "pending"
	WorkQueued    WorkStatus = "queued"
	WorkRunning   WorkStatus = "running"
	WorkComplete  WorkStatus = "complete"
	WorkFailed    WorkStatus = "failed"
	WorkCancelled WorkStatus = "cancelled"
)

// workTransitions is the exhaustive set of edges UpdateStatus may follow.
// Cancellation is deliberately absent: cancelled is only reachable through
// Cancel, which accepts any non-terminal source state.
var workTransitions = map[WorkStatus][]WorkStatus{
	WorkPending: {WorkQueued},
	WorkQueued:  {WorkRunning},
	WorkRunning: {WorkComplete, WorkFailed},
}

// CanTransitionTo reports whether UpdateStatus may move s to next.
func (s WorkStatus) CanTransitionTo(next WorkStatus) bool {
	for _, allowed := range workTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s WorkStatus) Terminal() bool {
	switch s {
	case WorkComplete, WorkFailed, WorkCancelled:
		return true
	default:
		return false
	}
}

// Well-known work event types. Events carry an open Data payload so callers
// can attach fields the core does not interpret.
const (
	EventCreated          = "created"
	EventStatusChanged    = "status_changed"
	EventCancelled        = "cancelled"
	EventSessionAssigned  = "session_assigned"
	EventSessionStarted   = "session_started"
	EventSessionCompleted = "session_completed"
	EventSessionFailed    = "session_failed"
	EventSessionCancelled = "session_cancelled"
)

// WorkEvent is one entry in a work item's append-only log.
type WorkEvent struct {
	Type      string
	Message   string
	Data      map[string]any
	Timestamp time.Time
}

// WorkItem is a trackable unit of work. Items form a tree through ParentID /
// ChildIDs; the store keeps both sides consistent at creation time.
type WorkItem struct {
	ID          WorkID
	Type        WorkType
	Status      WorkStatus
	Title       string
	Description string
	Input       map[string]any
	Output      map[string]any
	Tags        []string
	Priority    int
	ParentID    WorkID
	ChildIDs    []WorkID
	Iterations  int
	Error       string
	Events      []WorkEvent
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// HasTag reports membership in the item's tag set.
func (w WorkItem) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WorkInput carries the caller-supplied fields for Create.
type WorkInput struct {
	Type        WorkType
	Title       string
	Description string
	Input       map[string]any
	Tags        []string
	Priority    int
	ParentID    WorkID
}
