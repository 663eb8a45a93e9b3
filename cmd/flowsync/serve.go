package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/flowsync/api"
)

// readHeaderTimeout bounds slow clients on the admin listener.
const readHeaderTimeout = 10 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator, the worker pool, and the admin API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), cmd)
		},
	}
}

func (c *cli) serve(ctx context.Context, cmd *cobra.Command) error {
	eng, err := c.buildEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	cfg := eng.Config()
	logger := eng.Logger()

	if err := eng.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.API.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.New(eng).Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}
		g.Go(func() error {
			logger.Info("admin api listening", slog.String("addr", cfg.API.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Worker.ShutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(stopCtx))
		}
		errs = append(errs, eng.Stop(stopCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
