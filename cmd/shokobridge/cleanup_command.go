package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shokobridge/internal/bridge"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove library entries for files the catalog no longer reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, store, err := ctx.buildBridge()
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := b.Cleanup(runCtx)
			if summary != nil {
				bridge.WriteSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
}
