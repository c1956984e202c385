package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var dryRunFlag bool
	var debugFlag bool

	ctx := newCommandContext(&configFlag, &dryRunFlag, &debugFlag)

	rootCmd := &cobra.Command{
		Use:           "shokobridge",
		Short:         "Bridge a Shoko catalog into a Plex-shaped library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Log planned changes without touching the filesystem")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// shouldSkipConfig reports whether a command manages configuration itself and
// must run without a valid config file present.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for probe := cmd; probe != nil; probe = probe.Parent() {
		if probe.Annotations["skip-config"] == "true" {
			return true
		}
	}
	return false
}
