package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/karlmjogila/swarmops/internal/application"
	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	cmd.AddCommand(
		newSessionAssignCmd(app),
		newSessionListCmd(app),
		newSessionStartCmd(app),
		newSessionActivityCmd(app),
		newSessionCompleteCmd(app),
		newSessionFailCmd(app),
		newSessionCancelCmd(app),
		newSessionShowCmd(app),
		newSessionPruneCmd(app),
	)

	return cmd
}

func newSessionAssignCmd(app *app) *cobra.Command {
	var (
		roleName string
		workID   string
		key      string
		label    string
		task     string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Track a new session under a role, optionally bound to a work item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := app.roles.GetByName(cmd.Context(), roleName)
			if err != nil {
				return err
			}

			assignment, err := app.orchestrator.AssignSession(cmd.Context(), application.AssignSessionCommand{
				RoleID:     role.ID,
				WorkItemID: domain.WorkID(workID),
				Key:        key,
				Label:      label,
				Task:       task,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "assigned session %s to role %s\n", assignment.Session.Key, assignment.Role.Name)
			if assignment.WorkItem != nil {
				_, _ = fmt.Fprintf(out, "work item %s is now %s\n", assignment.WorkItem.ID, assignment.WorkItem.Status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "role name (required)")
	cmd.Flags().StringVar(&workID, "work", "", "work item id to bind")
	cmd.Flags().StringVar(&key, "key", "", "session key (generated when omitted)")
	cmd.Flags().StringVar(&label, "label", "", "human-readable label")
	cmd.Flags().StringVar(&task, "task", "", "task description")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	var (
		status   string
		workID   string
		label    string
		offset   int
		limit    int
		asJSON   bool
		roleName string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := ports.SessionFilter{
				Status:        domain.SessionStatus(status),
				WorkItemID:    domain.WorkID(workID),
				LabelContains: label,
			}
			if roleName != "" {
				role, err := app.roles.GetByName(cmd.Context(), roleName)
				if err != nil {
					return err
				}
				filter.RoleID = role.ID
			}

			page, err := app.sessions.List(cmd.Context(), filter, ports.Page{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, page)
			}

			for _, session := range page.Sessions {
				work := "-"
				if session.WorkItemID != "" {
					work = string(session.WorkItemID)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d tokens\n", session.Key, session.Status, work, session.TokenUsage.Total())
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&roleName, "role", "", "filter by role name")
	cmd.Flags().StringVar(&workID, "work", "", "filter by work item id")
	cmd.Flags().StringVar(&label, "label", "", "filter by label substring")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "pagination limit (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newSessionStartCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <key>",
		Short: "Mark a session active and start its linked work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started, err := app.orchestrator.StartSessionWork(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if started == nil {
				_, err = fmt.Fprintf(out, "session %s is active (no linked work)\n", args[0])
				return err
			}

			_, err = fmt.Fprintf(out, "session %s is active, work item %s is %s\n",
				started.Session.Key, started.WorkItem.ID, started.WorkItem.Status)
			return err
		},
	}

	return cmd
}

func newSessionActivityCmd(app *app) *cobra.Command {
	var input, output, thinking int64

	cmd := &cobra.Command{
		Use:   "activity <key>",
		Short: "Record a token-usage delta on a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.orchestrator.RecordActivity(cmd.Context(), args[0], domain.TokenUsage{
				Input:    input,
				Output:   output,
				Thinking: thinking,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d tokens total\n", session.Key, session.TokenUsage.Total())
			return err
		},
	}

	cmd.Flags().Int64Var(&input, "input", 0, "input tokens consumed")
	cmd.Flags().Int64Var(&output, "output", 0, "output tokens produced")
	cmd.Flags().Int64Var(&thinking, "thinking", 0, "thinking tokens consumed")

	return cmd
}

func newSessionCompleteCmd(app *app) *cobra.Command {
	var outputJSON string

	cmd := &cobra.Command{
		Use:   "complete <key>",
		Short: "Report a session as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var output map[string]any
			if outputJSON != "" {
				if err := json.Unmarshal([]byte(outputJSON), &output); err != nil {
					return fmt.Errorf("parse --output: %w", err)
				}
			}

			outcome, err := app.orchestrator.HandleSessionComplete(cmd.Context(), args[0], output, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session %s stopped\n", outcome.Session.Key)
			if outcome.WorkItem != nil {
				_, _ = fmt.Fprintf(out, "work item %s is %s\n", outcome.WorkItem.ID, outcome.WorkItem.Status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&outputJSON, "output", "", "work output as a JSON object")

	return cmd
}

func newSessionFailCmd(app *app) *cobra.Command {
	var (
		errorMessage string
		exitCode     int
	)

	cmd := &cobra.Command{
		Use:   "fail <key>",
		Short: "Report a session as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := app.orchestrator.HandleSessionFailed(cmd.Context(), args[0], errorMessage, exitCode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session %s stopped (exit %d)\n", outcome.Session.Key, exitCode)
			if outcome.WorkItem != nil {
				_, _ = fmt.Fprintf(out, "work item %s is %s\n", outcome.WorkItem.ID, outcome.WorkItem.Status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&errorMessage, "error", "", "failure message (required)")
	cmd.Flags().IntVar(&exitCode, "exit-code", 1, "process exit code")
	_ = cmd.MarkFlagRequired("error")

	return cmd
}

func newSessionCancelCmd(app *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <key>",
		Short: "Cancel a session and its linked work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := app.orchestrator.CancelSession(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "session %s stopped\n", outcome.Session.Key)
			if outcome.WorkItem != nil {
				_, _ = fmt.Fprintf(out, "work item %s is %s\n", outcome.WorkItem.ID, outcome.WorkItem.Status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")

	return cmd
}

func newSessionShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, session)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "key:\t%s\n", session.Key)
			_, _ = fmt.Fprintf(out, "status:\t%s\n", session.Status)
			_, _ = fmt.Fprintf(out, "role:\t%s\n", session.RoleID)
			if session.WorkItemID != "" {
				_, _ = fmt.Fprintf(out, "work:\t%s\n", session.WorkItemID)
			}
			if session.Label != "" {
				_, _ = fmt.Fprintf(out, "label:\t%s\n", session.Label)
			}
			_, _ = fmt.Fprintf(out, "tokens:\tin %d / out %d / think %d\n",
				session.TokenUsage.Input, session.TokenUsage.Output, session.TokenUsage.Thinking)
			if session.ExitCode != nil {
				_, _ = fmt.Fprintf(out, "exit code:\t%d\n", *session.ExitCode)
			}
			if session.Error != "" {
				_, _ = fmt.Fprintf(out, "error:\t%s\n", session.Error)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newSessionPruneCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove all stopped sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pruned, err := app.sessions.PruneStopped(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d stopped sessions\n", pruned)
			return err
		},
	}

	return cmd
}
