package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleListShowsBuiltins(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "role", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "architect")
	assert.Contains(t, stdout, "builder")
	assert.Contains(t, stdout, "reviewer")
	assert.Contains(t, stdout, "builtin")
}

func TestRoleCreateShowAndDelete(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "role", "create", "planner", "--description", "plans the work", "--thinking", "high")
	require.NoError(t, err)
	assert.Contains(t, stdout, "created role planner")

	stdout, _, err = executeCLI(t, home, "role", "show", "planner")
	require.NoError(t, err)
	assert.Contains(t, stdout, "planner")
	assert.Contains(t, stdout, "plans the work")
	assert.Contains(t, stdout, "high")

	stdout, _, err = executeCLI(t, home, "role", "delete", "planner")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted role planner")

	_, _, err = executeCLI(t, home, "role", "show", "planner")
	require.Error(t, err)
}

func TestRoleCreateRejectsInvalidThinkingLevel(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "role", "create", "planner", "--thinking", "extreme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid thinking level")
}

func TestRoleDeleteBuiltinFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "role", "delete", "architect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in")
}

func TestRoleShowJSONOutput(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "role", "show", "architect", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Name\": \"architect\"")
}

func TestWorkCreateListAndShow(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer", "--tag", "infra", "--type", "task")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	stdout, _, err = executeCLI(t, home, "work", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, workID)
	assert.Contains(t, stdout, "build the indexer")
	assert.Contains(t, stdout, "pending")
	assert.Contains(t, stdout, "infra")

	stdout, _, err = executeCLI(t, home, "work", "show", workID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "status:\tpending")
	assert.Contains(t, stdout, "created")
}

func TestWorkListJSONOutput(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "work", "list", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Total\": 1")
}

func TestWorkParentChildren(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "pipeline", "--type", "pipeline")
	require.NoError(t, err)
	parentID := extractWorkID(t, stdout)

	_, _, err = executeCLI(t, home, "work", "create", "step one", "--parent", parentID)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "work", "children", parentID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "step one")
}

func TestSessionCompleteWorkflowThroughCLI(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	stdout, _, err = executeCLI(t, home,
		"session", "assign", "--role", "builder", "--work", workID, "--key", "sess-1", "--label", "indexer build")
	require.NoError(t, err)
	assert.Contains(t, stdout, "assigned session sess-1 to role builder")
	assert.Contains(t, stdout, "queued")

	stdout, _, err = executeCLI(t, home, "session", "start", "sess-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "running")

	stdout, _, err = executeCLI(t, home, "session", "activity", "sess-1", "--input", "50", "--output", "30")
	require.NoError(t, err)
	assert.Contains(t, stdout, "80 tokens total")

	stdout, _, err = executeCLI(t, home, "session", "complete", "sess-1", "--output", `{"artifact":"index-v1"}`)
	require.NoError(t, err)
	assert.Contains(t, stdout, "session sess-1 stopped")
	assert.Contains(t, stdout, "complete")

	stdout, _, err = executeCLI(t, home, "work", "show", workID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "status:\tcomplete")
	assert.Contains(t, stdout, "session_completed")
}

func TestSessionFailWorkflowThroughCLI(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	_, _, err = executeCLI(t, home, "session", "assign", "--role", "builder", "--work", workID, "--key", "sess-1")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "session", "start", "sess-1")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "session", "fail", "sess-1", "--error", "boom", "--exit-code", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "session sess-1 stopped (exit 2)")
	assert.Contains(t, stdout, "failed")

	stdout, _, err = executeCLI(t, home, "work", "show", workID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "status:\tfailed")
	assert.Contains(t, stdout, "error:\tboom")
}

func TestSessionFailRequiresErrorFlag(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "fail", "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"error\" not set")
}

func TestSessionCancelThroughCLI(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	_, _, err = executeCLI(t, home, "session", "assign", "--role", "builder", "--work", workID, "--key", "sess-1")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "session", "cancel", "sess-1", "--reason", "no longer needed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cancelled")
}

func TestSessionAssignRejectsSecondLiveSession(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	_, _, err = executeCLI(t, home, "session", "assign", "--role", "builder", "--work", workID, "--key", "sess-1")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "session", "assign", "--role", "builder", "--work", workID, "--key", "sess-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has an active session")
}

func TestSessionAssignUnknownRoleFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "assign", "--role", "nobody")
	require.Error(t, err)
}

func TestSessionListFiltersByStatus(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "assign", "--role", "builder", "--key", "sess-1")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "session", "assign", "--role", "reviewer", "--key", "sess-2")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "session", "cancel", "sess-2", "--reason", "aborted")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "session", "list", "--status", "starting")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sess-1")
	assert.NotContains(t, stdout, "sess-2")

	stdout, _, err = executeCLI(t, home, "session", "list", "--role", "reviewer")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sess-2")
	assert.NotContains(t, stdout, "sess-1")
}

func TestStatusRendersActiveSessions(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "work", "create", "build the indexer")
	require.NoError(t, err)
	workID := extractWorkID(t, stdout)

	_, _, err = executeCLI(t, home,
		"session", "assign", "--role", "builder", "--work", workID, "--key", "sess-1", "--label", "indexer build")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions: 1")
	assert.Contains(t, stdout, "sess-1")
	assert.Contains(t, stdout, "role=builder")
	assert.Contains(t, stdout, "build the indexer")
}

func TestStatusJSONOutput(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "assign", "--role", "builder", "--key", "sess-1")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Key\": \"sess-1\"")
}

func TestCleanupDryRunReportsWithoutRemoving(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "assign", "--role", "builder", "--key", "sess-1")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "session", "cancel", "sess-1", "--reason", "done")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "cleanup", "--max-age", "0s", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "would remove 1 stopped sessions")

	stdout, _, err = executeCLI(t, home, "session", "show", "sess-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stopped")

	stdout, _, err = executeCLI(t, home, "cleanup", "--max-age", "0s")
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed 1 stopped sessions")

	_, _, err = executeCLI(t, home, "session", "show", "sess-1")
	require.Error(t, err)
}

func TestInitWritesConfigFile(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote")

	configPath := filepath.Join(home, ".swarmops", "config.toml")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[storage]")
	assert.Contains(t, string(data), "roles_path")

	_, _, err = executeCLI(t, home, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = executeCLI(t, home, "init", "--force")
	require.NoError(t, err)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

var workIDPattern = regexp.MustCompile(`created work item (\S+)`)

func extractWorkID(t *testing.T, stdout string) string {
	t.Helper()

	match := workIDPattern.FindStringSubmatch(stdout)
	require.Len(t, match, 2)
	return match[1]
}
