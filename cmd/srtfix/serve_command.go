package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"srtfix/internal/config"
	"srtfix/internal/logging"
	"srtfix/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repair API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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

			addr := cfg.Server.Bind
			if strings.TrimSpace(bind) != "" {
				addr = strings.TrimSpace(bind)
			}
			if cfg.Server.Token == "" && !isLoopback(addr) {
				logging.WarnWithContext(logger, "serving without an API token on a non-loopback address", "auth_disabled",
					logging.String("address", addr),
					logging.String(logging.FieldErrorHint, "set server.token or export "+config.TokenEnv),
				)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			server := web.New(engine, web.Options{
				Bind:           addr,
				Token:          cfg.Server.Token,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				Suffix:         cfg.Repair.OutputSuffix,
				ArchiveName:    cfg.Repair.ArchiveName,
				Workers:        cfg.Repair.Workers,
				History:        store,
				Logger:         logger,
			})
			go func() {
				select {
				case <-server.Started():
					fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s (mapping: %s)\n", server.Addr(), engine.Table().Source())
				case <-signalCtx.Done():
				}
			}()
			return server.Run(signalCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func isLoopback(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || strings.HasPrefix(host, "127.") || host == "::1"
}
