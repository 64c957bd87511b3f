package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"handheld_rfid_go/internal/tui"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, true)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := buildApp(cfg, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.start(ctx)
			defer a.stop()

			if srv := a.server(); srv != nil {
				srvCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					if err := srv.Run(srvCtx); err != nil {
						log.Error().Str("component", "main").Err(err).Msg("http server stopped")
					}
				}()
			}

			return tui.Run(ctx, a.session, a.screen, a.notifier)
		},
	}
}
