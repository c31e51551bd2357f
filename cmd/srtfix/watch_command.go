package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"srtfix/internal/batch"
	"srtfix/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Repair subtitles dropped into the inbox directory",
		Long: "Watch paths.inbox_dir and repair each subtitle once it stops changing.\n" +
			"Repaired copies go to paths.outbox_dir; originals move to <inbox>/.processed,\n" +
			"and files that fail are moved to <outbox>/failed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.InboxDir) == "" || strings.TrimSpace(cfg.Paths.OutboxDir) == "" {
				return fmt.Errorf("watch needs paths.inbox_dir and paths.outbox_dir in %s", ctx.configPath)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			engine, err := ctx.newEngine()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			pipeline := &watcher.Pipeline{
				Runner: &batch.Runner{
					Engine:  engine,
					Workers: 1,
					Suffix:  cfg.Repair.OutputSuffix,
					Logger:  logger,
				},
				Inbox:   cfg.Paths.InboxDir,
				Outbox:  cfg.Paths.OutboxDir,
				History: store,
				Mapping: engine.Table().Source(),
				Logger:  logger,
			}
			w, err := watcher.New(watcher.Options{
				Inbox:      cfg.Paths.InboxDir,
				Settle:     time.Duration(cfg.Watch.SettleMS) * time.Millisecond,
				Extensions: cfg.Repair.Extensions,
				Logger:     logger,
			}, pipeline.Handle)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s -> %s\n", cfg.Paths.InboxDir, cfg.Paths.OutboxDir)
			return w.Run(signalCtx)
		},
	}
}
