package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fmuoria/recruit-crm/internal/api"
	"github.com/spf13/cobra"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the import HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.Close()

			go a.sweep(ctx, o.cfg.Uploads.SweepInterval)

			srv := api.NewServer(a.agent, o.cfg.Server, o.log).HTTPServer()
			serverErrors := make(chan error, 1)
			go func() {
				o.log.Info().
					Str("addr", srv.Addr).
					Str("database", o.cfg.Database.Driver).
					Str("cache", o.cfg.Uploads.CacheDriver).
					Str("notify", o.cfg.Notify.Driver).
					Msg("HTTP server listening")
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				o.log.Info().Msg("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), o.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				o.log.Error().Err(err).Msg("graceful shutdown failed")
				if err := srv.Close(); err != nil {
					o.log.Error().Err(err).Msg("forced shutdown failed")
				}
			}
			o.log.Info().Msg("server stopped")
			return nil
		},
	}
}
