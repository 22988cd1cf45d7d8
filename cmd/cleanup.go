package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanupCmd(app *app) *cobra.Command {
	var (
		maxAge time.Duration
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stopped sessions older than --max-age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.orchestrator.Cleanup(cmd.Context(), maxAge, dryRun)
			if err != nil {
				return err
			}

			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d stopped sessions\n", verb, report.PrunedSessions)
			return err
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "remove stopped sessions idle longer than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without removing")

	return cmd
}
