package application

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/karlmjogila/swarmops/internal/adapters/repo/jsonfile"
	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock(start time.Time) *stubClock {
	return &stubClock{now: start}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	orchestrator *Orchestrator
	roles        *jsonfile.RoleStore
	work         *jsonfile.WorkStore
	sessions     *jsonfile.SessionStore
	clock        *stubClock
	role         domain.Role
}

// newFixture wires the orchestrator against real file stores in a temp
// directory, with the architect builtin as the default role.
func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	clock := newStubClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	roles, err := jsonfile.NewRoleStore(filepath.Join(dir, "roles.json"), clock)
	require.NoError(t, err)
	work, err := jsonfile.NewWorkStore(filepath.Join(dir, "work"), clock)
	require.NoError(t, err)
	sessions, err := jsonfile.NewSessionStore(filepath.Join(dir, "sessions", "active.json"), clock)
	require.NoError(t, err)

	role, err := roles.GetByName(context.Background(), "architect")
	require.NoError(t, err)

	return fixture{
		orchestrator: NewOrchestrator(roles, work, sessions, clock),
		roles:        roles,
		work:         work,
		sessions:     sessions,
		clock:        clock,
		role:         role,
	}
}

func (f fixture) createWork(t *testing.T, title string) domain.WorkItem {
	t.Helper()

	item, err := f.work.Create(context.Background(), domain.WorkInput{Title: title})
	require.NoError(t, err)
	return item
}

func eventTypes(item domain.WorkItem) []string {
	types := make([]string, 0, len(item.Events))
	for _, event := range item.Events {
		types = append(types, event.Type)
	}
	return types
}

func TestAssignSessionBindsWorkAndQueues(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	assignment, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
		Label:      "indexer build",
	})
	require.NoError(t, err)

	assert.Equal(t, f.role.ID, assignment.Role.ID)
	assert.Equal(t, "sess-1", assignment.Session.Key)
	assert.Equal(t, domain.SessionStarting, assignment.Session.Status)
	assert.Equal(t, item.ID, assignment.Session.WorkItemID)

	require.NotNil(t, assignment.WorkItem)
	assert.Equal(t, domain.WorkQueued, assignment.WorkItem.Status)
	assert.Equal(t, []string{
		domain.EventCreated,
		domain.EventStatusChanged,
		domain.EventSessionAssigned,
	}, eventTypes(*assignment.WorkItem))

	last := assignment.WorkItem.Events[len(assignment.WorkItem.Events)-1]
	assert.Equal(t, "sess-1", last.Message)
	assert.Equal(t, string(f.role.ID), last.Data["roleId"])
}

func TestAssignSessionWithoutWorkItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	assignment, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-1",
		Task:   "exploratory review",
	})
	require.NoError(t, err)
	assert.Nil(t, assignment.WorkItem)
	assert.Empty(t, assignment.Session.WorkItemID)
}

func TestAssignSessionUnknownRoleReturnsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{RoleID: "no-such-role"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAssignSessionRejectsSecondLiveSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-2",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// The rejected assignment must not leave a tracked session behind.
	_, err = f.sessions.Get(context.Background(), "sess-2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAssignSessionRejectsTerminalWorkItemWithoutTracking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)
	_, err = f.orchestrator.StartSessionWork(context.Background(), "sess-1")
	require.NoError(t, err)
	_, err = f.orchestrator.HandleSessionComplete(context.Background(), "sess-1", nil, nil)
	require.NoError(t, err)

	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-2",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	// No session may be tracked for the rejected assignment: a stranded
	// starting session would turn every later assign into a conflict.
	_, err = f.sessions.Get(context.Background(), "sess-2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-3",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

func TestStartSessionWorkMovesWorkToRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	started, err := f.orchestrator.StartSessionWork(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, started)

	assert.Equal(t, domain.SessionActive, started.Session.Status)
	assert.Equal(t, domain.WorkRunning, started.WorkItem.Status)
	require.NotNil(t, started.WorkItem.StartedAt)
	assert.Equal(t, f.clock.Now(), *started.WorkItem.StartedAt)

	last := started.WorkItem.Events[len(started.WorkItem.Events)-1]
	assert.Equal(t, domain.EventSessionStarted, last.Type)
	assert.Equal(t, "sess-1", last.Message)
}

func TestStartSessionWorkWithoutLinkedWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-1",
	})
	require.NoError(t, err)

	started, err := f.orchestrator.StartSessionWork(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, started)

	session, err := f.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
}

func TestCompleteWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	_, err = f.orchestrator.StartSessionWork(context.Background(), "sess-1")
	require.NoError(t, err)

	_, err = f.orchestrator.RecordActivity(context.Background(), "sess-1", domain.TokenUsage{Input: 50, Output: 10})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	outcome, err := f.orchestrator.HandleSessionComplete(
		context.Background(),
		"sess-1",
		map[string]any{"artifact": "index-v1"},
		&domain.TokenUsage{Input: 30, Output: 10, Thinking: 5},
	)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, domain.SessionStopped, outcome.Session.Status)
	require.NotNil(t, outcome.Session.ExitCode)
	assert.Zero(t, *outcome.Session.ExitCode)
	assert.Equal(t, domain.TokenUsage{Input: 80, Output: 20, Thinking: 5}, outcome.Session.TokenUsage)

	require.NotNil(t, outcome.WorkItem)
	assert.Equal(t, domain.WorkComplete, outcome.WorkItem.Status)
	assert.Equal(t, "index-v1", outcome.WorkItem.Output["artifact"])
	require.NotNil(t, outcome.WorkItem.CompletedAt)
	assert.Equal(t, f.clock.Now(), *outcome.WorkItem.CompletedAt)

	last := outcome.WorkItem.Events[len(outcome.WorkItem.Events)-1]
	assert.Equal(t, domain.EventSessionCompleted, last.Type)
}

func TestCompleteWithoutLinkedWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-1",
	})
	require.NoError(t, err)

	outcome, err := f.orchestrator.HandleSessionComplete(context.Background(), "sess-1", nil, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Nil(t, outcome.WorkItem)
}

func TestFailedWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	_, err = f.orchestrator.StartSessionWork(context.Background(), "sess-1")
	require.NoError(t, err)

	outcome, err := f.orchestrator.HandleSessionFailed(context.Background(), "sess-1", "boom", 2)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.SessionStopped, outcome.Session.Status)
	require.NotNil(t, outcome.Session.ExitCode)
	assert.Equal(t, 2, *outcome.Session.ExitCode)
	assert.Equal(t, "boom", outcome.Session.Error)

	require.NotNil(t, outcome.WorkItem)
	assert.Equal(t, domain.WorkFailed, outcome.WorkItem.Status)
	assert.Equal(t, "boom", outcome.WorkItem.Error)
	require.NotNil(t, outcome.WorkItem.CompletedAt)

	last := outcome.WorkItem.Events[len(outcome.WorkItem.Events)-1]
	assert.Equal(t, domain.EventSessionFailed, last.Type)
	assert.Equal(t, "boom", last.Message)
	assert.Equal(t, 2, last.Data["exitCode"])
}

func TestCancelWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	outcome, err := f.orchestrator.CancelSession(context.Background(), "sess-1", "no longer needed")
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.SessionStopped, outcome.Session.Status)
	assert.Nil(t, outcome.Session.ExitCode)
	assert.Equal(t, "no longer needed", outcome.Session.Error)

	require.NotNil(t, outcome.WorkItem)
	assert.Equal(t, domain.WorkCancelled, outcome.WorkItem.Status)
	assert.Equal(t, "no longer needed", outcome.WorkItem.Error)

	types := eventTypes(*outcome.WorkItem)
	assert.Equal(t, domain.EventCancelled, types[len(types)-2])
	assert.Equal(t, domain.EventSessionCancelled, types[len(types)-1])
}

func TestCancelSessionToleratesAlreadyTerminalWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	_, err = f.work.Cancel(context.Background(), item.ID, "cancelled elsewhere")
	require.NoError(t, err)

	outcome, err := f.orchestrator.CancelSession(context.Background(), "sess-1", "cleanup")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStopped, outcome.Session.Status)
	assert.Nil(t, outcome.WorkItem)
}

func TestGetWorkForSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)
	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-2",
	})
	require.NoError(t, err)

	bound, err := f.orchestrator.GetWorkForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, item.ID, bound.ID)

	unbound, err := f.orchestrator.GetWorkForSession(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.Nil(t, unbound)
}

func TestGetSessionsForWorkIncludesStoppedSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)

	_, err = f.orchestrator.CancelSession(context.Background(), "sess-1", "restarting")
	require.NoError(t, err)

	sessions, err := f.orchestrator.GetSessionsForWork(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].Key)
	assert.Equal(t, domain.SessionStopped, sessions[0].Status)
}

func TestGetRoleForSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-1",
	})
	require.NoError(t, err)

	role, err := f.orchestrator.GetRoleForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, f.role.ID, role.ID)
	assert.Equal(t, "architect", role.Name)
}

func TestActiveSessionSummaryJoinsRoleAndWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.createWork(t, "build the indexer")

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID:     f.role.ID,
		WorkItemID: item.ID,
		Key:        "sess-1",
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-2",
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-3",
	})
	require.NoError(t, err)

	_, err = f.orchestrator.CancelSession(context.Background(), "sess-3", "aborted")
	require.NoError(t, err)

	overviews, err := f.orchestrator.ActiveSessionSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, overviews, 2)

	assert.Equal(t, "sess-1", overviews[0].Session.Key)
	assert.Equal(t, "architect", overviews[0].Role.Name)
	require.NotNil(t, overviews[0].WorkItem)
	assert.Equal(t, item.ID, overviews[0].WorkItem.ID)

	assert.Equal(t, "sess-2", overviews[1].Session.Key)
	assert.Nil(t, overviews[1].WorkItem)
}

func TestCleanupRemovesStaleStoppedSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-stale",
	})
	require.NoError(t, err)
	_, err = f.orchestrator.CancelSession(context.Background(), "sess-stale", "done")
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	_, err = f.orchestrator.AssignSession(context.Background(), AssignSessionCommand{
		RoleID: f.role.ID,
		Key:    "sess-fresh",
	})
	require.NoError(t, err)
	_, err = f.orchestrator.CancelSession(context.Background(), "sess-fresh", "done")
	require.NoError(t, err)

	report, err := f.orchestrator.Cleanup(context.Background(), 24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PrunedSessions)

	// Dry run leaves the stale session in place.
	_, err = f.sessions.Get(context.Background(), "sess-stale")
	require.NoError(t, err)

	report, err = f.orchestrator.Cleanup(context.Background(), 24*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PrunedSessions)

	_, err = f.sessions.Get(context.Background(), "sess-stale")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = f.sessions.Get(context.Background(), "sess-fresh")
	require.NoError(t, err)
}
