package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shokobridge/internal/bridge"
	"shokobridge/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run continuously, reconciling when the source tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, store, err := ctx.buildBridge()
			if err != nil {
				return err
			}
			defer store.Close()
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pass := func(passCtx context.Context) error {
				summary, err := b.Run(passCtx)
				if summary != nil {
					bridge.WriteSummary(cmd.OutOrStdout(), summary)
					if reportErr := bridge.WriteUnmatchedReport(ctx.cfg.Paths.UnmatchedReport, summary); reportErr != nil {
						cmd.PrintErrln(reportErr)
					}
				}
				return err
			}

			debounce := time.Duration(ctx.cfg.Options.WatchDebounceSeconds) * time.Second
			watcher := watch.New(ctx.cfg.Directories.SourceRoot, debounce, pass, logger)
			if err := watcher.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
