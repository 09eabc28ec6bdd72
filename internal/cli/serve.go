package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/vibe-check/internal/http"
	"github.com/tbourn/vibe-check/internal/observability"
)

func serveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the prompt scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return e.serve(ctx)
		},
	}
}

func (e *env) serve(ctx context.Context) error {
	cfg, lg := e.cfg, e.log
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, e.version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	c, err := wire(cfg, db, lg)
	if err != nil {
		return err
	}
	if err := c.scheduleAll(ctx, cfg); err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, c.newHandlers(cfg), cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return lg.WithContext(context.Background()) },
	}

	c.sched.Start()
	errCh := make(chan error, 1)
	go func() {
		lg.Info().
			Str("addr", srv.Addr).
			Bool("oauth", cfg.Slack.OAuthEnabled()).
			Bool("dashboard", cfg.Dashboard.Enabled()).
			Int("jobs", len(c.sched.Jobs())).
			Msg("vibecheck listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		lg.Info().Msg("shutdown requested")
	case runErr = <-errCh:
		lg.Error().Err(runErr).Msg("http server failed")
	}

	// Stop firing first so no prompt starts against a closing server.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := c.sched.Stop(sctx); err != nil {
		lg.Warn().Err(err).Msg("scheduler stop")
	}
	if err := srv.Shutdown(sctx); err != nil {
		lg.Warn().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		lg.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	lg.Info().Msg("bye")
	return runErr
}
