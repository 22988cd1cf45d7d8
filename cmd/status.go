package cmd

import (
	"fmt"
	"time"

	statusadapter "github.com/karlmjogila/swarmops/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var (
		asJSON     bool
		staleAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show all non-stopped sessions with their roles and work",
		RunE: func(cmd *cobra.Command, _ []string) error {
			overviews, err := app.orchestrator.ActiveSessionSummary(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, overviews)
			}

			rendered, err := app.statusRenderer(overviews, statusadapter.RenderOptions{
				Now:        app.now(),
				StaleAfter: staleAfter,
			})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", time.Hour, "mark sessions idle longer than this as stale")

	return cmd
}
