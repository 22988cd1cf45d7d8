package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "swarmops",
		Short:         "swarmops: orchestrate roles, work items, and sessions",
		Long:          "swarmops is the control plane for a swarm of worker sessions: define roles, queue work items, assign sessions to them, and track lifecycle and token usage from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newRoleCmd(app),
		newWorkCmd(app),
		newSessionCmd(app),
		newStatusCmd(app),
		newCleanupCmd(app),
	)

	return rootCmd
}
