package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(load configLoader) *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, load)

	rootCmd := &cobra.Command{
		Use:           "docrecon",
		Short:         "Reconcile extracted trade document items against the master catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))

	return rootCmd
}
