package application

import "github.com/karlmjogila/swarmops/internal/domain"

// Assignment is the result of AssignSession: the tracked session, the role it
// runs under, and the work item it was bound to (nil when unbound).
type Assignment struct {
	Session  domain.Session
	WorkItem *domain.WorkItem
	Role     domain.Role
}

// SessionWork pairs a session with its linked work item.
type SessionWork struct {
	Session  domain.Session
	WorkItem domain.WorkItem
}

// Outcome is the result of a terminal workflow step (complete, failed,
// cancelled). Success is true only for HandleSessionComplete.
type Outcome struct {
	Success  bool
	Session  domain.Session
	WorkItem *domain.WorkItem
}

// SessionOverview is one row of the active-session summary.
type SessionOverview struct {
	Session  domain.Session
	WorkItem *domain.WorkItem
	Role     domain.Role
}

// CleanupReport summarizes a staleness sweep.
type CleanupReport struct {
	PrunedSessions int
}
