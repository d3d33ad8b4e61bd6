package main

import (
	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/app"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var prefsFlag string
	var refreshSeconds int

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "crane",
		Short:         "Terminal client for local container runtimes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath:   configFlag,
				PrefsPath:    prefsFlag,
				RefreshEvery: refreshSeconds,
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&prefsFlag, "prefs", "", "Preferences file path")
	rootCmd.Flags().IntVar(&refreshSeconds, "refresh", 0, "Container list refresh interval in seconds")

	rootCmd.AddCommand(newPsCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newLifecycleCommands(ctx)...)
	rootCmd.AddCommand(newCreateCommand(ctx))
	rootCmd.AddCommand(newNetworksCommand(ctx))

	return rootCmd
}
