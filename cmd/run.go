package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hostward/device-agent/internal/hotreload"
	"github.com/hostward/device-agent/internal/metrics"
	"github.com/hostward/device-agent/internal/scheduler"
	"github.com/hostward/device-agent/internal/server"
	"github.com/hostward/device-agent/internal/vault"
	"github.com/hostward/device-agent/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newRunCommand(opts *globalOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect and deliver snapshots on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit with its result")
	return cmd
}

func runAgent(ctx context.Context, opts *globalOptions, once bool) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.close()
	ctx, log := e.ctx, e.log

	if err := vault.DisableCoreDumps(); err != nil {
		log.Warn().Err(err).Msg("Failed to disable core dumps")
	}

	v, err := e.vault()
	if err != nil {
		return err
	}
	if e.cfg.Server.Enabled && !v.HasCredential() {
		return fmt.Errorf("no credential found at %s: run `device-agent init` or `device-agent register <token>`", v.Paths().TokenPath)
	}

	m := metrics.New()
	a, err := e.newAgent(v, m)
	if err != nil {
		return err
	}

	if once {
		return a.RunCycle(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)

	sched, err := scheduler.NewScheduler("collection", e.cm.GetScheduleExpr(), a.RunCycle, log)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return sched.Stop(stopCtx)
	})

	if e.cfg.Metrics.Enabled {
		app := server.New(server.Options{
			Addr:     e.cfg.Metrics.ListenAddress,
			Health:   a,
			Gatherer: m.Gatherer(),
			Pprof:    e.cfg.Metrics.Pprof,
			Log:      log,
		})
		g.Go(func() error {
			log.Info().Str("address", app.Addr()).Msg("Serving health and metrics")
			return app.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.Shutdown(shutdownCtx)
		})
	}

	events := make(chan struct{}, 1)
	reloader := hotreload.NewHotReloadManager(e.cm, log, sched)
	g.Go(func() error {
		if err := watcher.WatchChanges(ctx, log, e.cm.Path(), events); err != nil {
			log.Warn().Err(err).Msg("Config hot reload is disabled")
		}
		return nil
	})
	g.Go(func() error {
		return reloader.Run(ctx, events)
	})

	log.Info().
		Str("agent_id", e.cfg.Agent.AgentID).
		Bool("delivery", e.cfg.Server.Enabled).
		Msg("Startup complete 🚀")

	return g.Wait()
}
