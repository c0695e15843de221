package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/SlabNest/internal/controller"
	"github.com/piwi3910/SlabNest/internal/server"
	"github.com/piwi3910/SlabNest/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the nesting controller over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("db", "", "SQLite database for order nestings")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := store.OpenSQLite(a.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.New(db)
	if err := st.Init(ctx); err != nil {
		return err
	}
	a.logger.Info("Store ready", zap.String("db", a.cfg.Store.Path))

	ctrl := controller.New(a.nester(),
		controller.WithLogger(a.logger.Named("controller")),
		controller.WithRecorder(a.recorder),
		controller.WithDefaults(a.cfg.Nesting.Model()),
	)
	srv := server.New(ctrl,
		server.WithLogger(a.logger.Named("http")),
		server.WithStore(st),
		server.WithGatherer(a.registry),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctrl.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, a.cfg.Server.Addr)
	})
	return g.Wait()
}
