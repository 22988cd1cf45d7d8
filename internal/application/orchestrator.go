package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
)

// Orchestrator composes the role, work, and session stores into the named
// workflows of the control plane. Callers drive workflow steps through this
// service only; the stores enforce per-entity invariants underneath. The
// orchestrator never spawns real work: assign/start record intent, and the
// external executor reports back through RecordActivity and the
// HandleSession* methods.
type Orchestrator struct {
	roles    ports.RoleStore
	work     ports.WorkStore
	sessions ports.SessionStore
	clock    ports.Clock
}

func NewOrchestrator(roles ports.RoleStore, work ports.WorkStore, sessions ports.SessionStore, clock ports.Clock) *Orchestrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Orchestrator{
		roles:    roles,
		work:     work,
		sessions: sessions,
		clock:    clock,
	}
}

// AssignSession validates the role, tracks a new session, and moves the bound
// work item from pending to queued. A work item that already has a
// non-terminal session rejects further assignment.
func (o *Orchestrator) AssignSession(ctx context.Context, cmd AssignSessionCommand) (Assignment, error) {
	role, err := o.roles.Get(ctx, cmd.RoleID)
	if err != nil {
		return Assignment{}, fmt.Errorf("get role: %w", err)
	}

	var workItem *domain.WorkItem
	if cmd.WorkItemID != "" {
		item, err := o.work.Get(ctx, cmd.WorkItemID)
		if err != nil {
			return Assignment{}, fmt.Errorf("get work item: %w", err)
		}

		live, err := o.liveSessionCount(ctx, cmd.WorkItemID)
		if err != nil {
			return Assignment{}, err
		}
		if live > 0 {
			return Assignment{}, &domain.ConflictError{
				Reason: fmt.Sprintf("work item %q already has an active session", cmd.WorkItemID),
			}
		}
		// Reject before tracking: a failed queue transition after Track would
		// strand a live starting session on the item and block re-assignment.
		if !item.Status.CanTransitionTo(domain.WorkQueued) {
			return Assignment{}, &domain.InvalidTransitionError{
				Entity: "work item",
				From:   string(item.Status),
				To:     string(domain.WorkQueued),
			}
		}
		workItem = &item
	}

	session, err := o.sessions.Track(ctx, domain.SessionInput{
		Key:        cmd.Key,
		RoleID:     cmd.RoleID,
		WorkItemID: cmd.WorkItemID,
		Label:      cmd.Label,
		Task:       cmd.Task,
	})
	if err != nil {
		return Assignment{}, fmt.Errorf("track session: %w", err)
	}

	if workItem != nil {
		if _, err := o.work.UpdateStatus(ctx, cmd.WorkItemID, domain.WorkQueued); err != nil {
			return Assignment{}, fmt.Errorf("queue work item: %w", err)
		}
		queued, err := o.work.AppendEvent(ctx, cmd.WorkItemID, domain.WorkEvent{
			Type:    domain.EventSessionAssigned,
			Message: session.Key,
			Data:    map[string]any{"roleId": string(cmd.RoleID)},
		})
		if err != nil {
			return Assignment{}, fmt.Errorf("record assignment event: %w", err)
		}
		workItem = &queued
	}

	return Assignment{Session: session, WorkItem: workItem, Role: role}, nil
}

// StartSessionWork marks the session active and moves its linked work item
// from queued to running. The result is nil when the session has no linked
// work.
func (o *Orchestrator) StartSessionWork(ctx context.Context, sessionKey string) (*SessionWork, error) {
	session, err := o.sessions.MarkActive(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("mark session active: %w", err)
	}

	if session.WorkItemID == "" {
		return nil, nil
	}

	if _, err := o.work.UpdateStatus(ctx, session.WorkItemID, domain.WorkRunning); err != nil {
		return nil, fmt.Errorf("start work item: %w", err)
	}
	item, err := o.work.AppendEvent(ctx, session.WorkItemID, domain.WorkEvent{
		Type:    domain.EventSessionStarted,
		Message: session.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("record start event: %w", err)
	}

	return &SessionWork{Session: session, WorkItem: item}, nil
}

// RecordActivity accumulates a token-usage delta on the session and refreshes
// its activity timestamp.
func (o *Orchestrator) RecordActivity(ctx context.Context, sessionKey string, delta domain.TokenUsage) (domain.Session, error) {
	session, err := o.sessions.AddTokenUsage(ctx, sessionKey, delta)
	if err != nil {
		return domain.Session{}, fmt.Errorf("add token usage: %w", err)
	}
	return session, nil
}

// HandleSessionComplete records a final usage delta when given, stops the
// session with exit code 0, completes the linked work item, and stores the
// output on it.
func (o *Orchestrator) HandleSessionComplete(ctx context.Context, sessionKey string, output map[string]any, delta *domain.TokenUsage) (Outcome, error) {
	if delta != nil {
		if _, err := o.sessions.AddTokenUsage(ctx, sessionKey, *delta); err != nil {
			return Outcome{}, fmt.Errorf("record final activity: %w", err)
		}
	}

	exitCode := 0
	session, err := o.sessions.MarkStopped(ctx, sessionKey, &exitCode, "")
	if err != nil {
		return Outcome{}, fmt.Errorf("stop session: %w", err)
	}

	outcome := Outcome{Success: true, Session: session}
	if session.WorkItemID == "" {
		return outcome, nil
	}

	if _, err := o.work.UpdateStatus(ctx, session.WorkItemID, domain.WorkComplete); err != nil {
		return Outcome{}, fmt.Errorf("complete work item: %w", err)
	}
	if output != nil {
		if _, err := o.work.SetOutput(ctx, session.WorkItemID, output); err != nil {
			return Outcome{}, fmt.Errorf("store work output: %w", err)
		}
	}
	item, err := o.work.AppendEvent(ctx, session.WorkItemID, domain.WorkEvent{
		Type:    domain.EventSessionCompleted,
		Message: session.Key,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion event: %w", err)
	}

	outcome.WorkItem = &item
	return outcome, nil
}

// HandleSessionFailed stops the session with the given exit code and error,
// and fails the linked work item with the same error.
func (o *Orchestrator) HandleSessionFailed(ctx context.Context, sessionKey string, errorMessage string, exitCode int) (Outcome, error) {
	session, err := o.sessions.MarkStopped(ctx, sessionKey, &exitCode, errorMessage)
	if err != nil {
		return Outcome{}, fmt.Errorf("stop session: %w", err)
	}

	outcome := Outcome{Success: false, Session: session}
	if session.WorkItemID == "" {
		return outcome, nil
	}

	if _, err := o.work.UpdateStatus(ctx, session.WorkItemID, domain.WorkFailed); err != nil {
		return Outcome{}, fmt.Errorf("fail work item: %w", err)
	}
	if _, err := o.work.SetError(ctx, session.WorkItemID, errorMessage); err != nil {
		return Outcome{}, fmt.Errorf("record work error: %w", err)
	}
	item, err := o.work.AppendEvent(ctx, session.WorkItemID, domain.WorkEvent{
		Type:    domain.EventSessionFailed,
		Message: errorMessage,
		Data:    map[string]any{"exitCode": exitCode},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record failure event: %w", err)
	}

	outcome.WorkItem = &item
	return outcome, nil
}

// CancelSession stops the session and cancels the linked work item with the
// given reason. Cancellation is cooperative bookkeeping: the external
// executor is expected to notice the cancelled status and stop real work.
func (o *Orchestrator) CancelSession(ctx context.Context, sessionKey string, reason string) (Outcome, error) {
	session, err := o.sessions.MarkStopped(ctx, sessionKey, nil, reason)
	if err != nil {
		return Outcome{}, fmt.Errorf("stop session: %w", err)
	}

	outcome := Outcome{Success: false, Session: session}
	if session.WorkItemID == "" {
		return outcome, nil
	}

	if _, err := o.work.Cancel(ctx, session.WorkItemID, reason); err != nil {
		// The linked item may already be terminal (e.g. cancelled through
		// another session); the session stop still stands.
		if errors.Is(err, domain.ErrInvalidTransition) {
			return outcome, nil
		}
		return Outcome{}, fmt.Errorf("cancel work item: %w", err)
	}
	item, err := o.work.AppendEvent(ctx, session.WorkItemID, domain.WorkEvent{
		Type:    domain.EventSessionCancelled,
		Message: reason,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record cancellation event: %w", err)
	}

	outcome.WorkItem = &item
	return outcome, nil
}

// GetWorkForSession returns the work item linked to the session, or nil when
// the session is unbound.
func (o *Orchestrator) GetWorkForSession(ctx context.Context, sessionKey string) (*domain.WorkItem, error) {
	session, err := o.sessions.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.WorkItemID == "" {
		return nil, nil
	}

	item, err := o.work.Get(ctx, session.WorkItemID)
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return &item, nil
}

// GetSessionsForWork returns every session ever associated with the work
// item.
func (o *Orchestrator) GetSessionsForWork(ctx context.Context, workItemID domain.WorkID) ([]domain.Session, error) {
	page, err := o.sessions.List(ctx, ports.SessionFilter{WorkItemID: workItemID}, ports.Page{})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return page.Sessions, nil
}

// GetRoleForSession returns the role the session runs under.
func (o *Orchestrator) GetRoleForSession(ctx context.Context, sessionKey string) (domain.Role, error) {
	session, err := o.sessions.Get(ctx, sessionKey)
	if err != nil {
		return domain.Role{}, fmt.Errorf("get session: %w", err)
	}

	role, err := o.roles.Get(ctx, session.RoleID)
	if err != nil {
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// ActiveSessionSummary joins every non-stopped session with its role and
// linked work item.
func (o *Orchestrator) ActiveSessionSummary(ctx context.Context) ([]SessionOverview, error) {
	sessions, err := o.sessions.GetActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	overviews := make([]SessionOverview, 0, len(sessions))
	for _, session := range sessions {
		role, err := o.roles.Get(ctx, session.RoleID)
		if err != nil {
			return nil, fmt.Errorf("get role: %w", err)
		}

		overview := SessionOverview{Session: session, Role: role}
		if session.WorkItemID != "" {
			item, err := o.work.Get(ctx, session.WorkItemID)
			if err != nil {
				return nil, fmt.Errorf("get work item: %w", err)
			}
			overview.WorkItem = &item
		}
		overviews = append(overviews, overview)
	}

	return overviews, nil
}

// Cleanup removes stopped sessions whose last activity is older than maxAge.
// With dryRun the report counts candidates without removing anything.
func (o *Orchestrator) Cleanup(ctx context.Context, maxAge time.Duration, dryRun bool) (CleanupReport, error) {
	page, err := o.sessions.List(ctx, ports.SessionFilter{Status: domain.SessionStopped}, ports.Page{})
	if err != nil {
		return CleanupReport{}, fmt.Errorf("list stopped sessions: %w", err)
	}

	cutoff := o.clock.Now().Add(-maxAge)
	report := CleanupReport{}
	for _, session := range page.Sessions {
		if session.LastActivityAt.After(cutoff) {
			continue
		}
		if !dryRun {
			if err := o.sessions.Remove(ctx, session.Key); err != nil {
				return CleanupReport{}, fmt.Errorf("remove session %q: %w", session.Key, err)
			}
		}
		report.PrunedSessions++
	}

	return report, nil
}

func (o *Orchestrator) liveSessionCount(ctx context.Context, workItemID domain.WorkID) (int, error) {
	page, err := o.sessions.List(ctx, ports.SessionFilter{WorkItemID: workItemID}, ports.Page{})
	if err != nil {
		return 0, fmt.Errorf("list sessions for work item: %w", err)
	}

	live := 0
	for _, session := range page.Sessions {
		if !session.Status.Terminal() {
			live++
		}
	}
	return live, nil
}
