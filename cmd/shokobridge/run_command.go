package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shokobridge/internal/bridge"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one reconciliation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, store, err := ctx.buildBridge()
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := b.Run(runCtx)
			if summary != nil {
				bridge.WriteSummary(cmd.OutOrStdout(), summary)
				if reportErr := bridge.WriteUnmatchedReport(ctx.cfg.Paths.UnmatchedReport, summary); reportErr != nil {
					cmd.PrintErrln(reportErr)
				}
			}
			return err
		},
	}
}
