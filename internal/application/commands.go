package application

import "github.com/karlmjogila/swarmops/internal/domain"

// AssignSessionCommand requests a new session under a role, optionally bound
// to a work item. Key is optional; the session store generates one when
// empty.
type AssignSessionCommand struct {
	RoleID     domain.RoleID
	WorkItemID domain.WorkID
	Key        string
	Label      string
	Task       string
}
