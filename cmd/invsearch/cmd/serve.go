package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/invsearch/internal/async"
	"github.com/Aman-CERP/invsearch/internal/config"
	"github.com/Aman-CERP/invsearch/internal/httpapi"
	"github.com/Aman-CERP/invsearch/internal/logging"
	"github.com/Aman-CERP/invsearch/pkg/version"
)

// configReloadDebounce coalesces the burst of events an editor save makes.
const configReloadDebounce = 250 * time.Millisecond

type serveOptions struct {
	addr    string
	watch   bool
	rebuild bool
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var so serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API for search, catalog and custom-ID operations.

On start the search index is reconciled with the database in the
background: a fresh or interrupted index is rebuilt, otherwise only the
drifted documents are repaired. Search is available immediately.

With --watch, edits to the config file retune search and the log level
without a restart.`,
		Example: `  # Serve on the configured address
  invsearch serve

  # Serve on another port and rebuild the index first
  invsearch serve --addr :9090 --rebuild`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, so)
		},
	}

	cmd.Flags().StringVar(&so.addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&so.watch, "watch", false, "Reload search and logging settings when the config file changes")
	cmd.Flags().BoolVar(&so.rebuild, "rebuild", false, "Rebuild the whole index on start")

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, so serveOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if so.addr != "" {
		cfg.Server.Addr = so.addr
	}

	// A long-running server logs to file as well as stderr.
	if !opts.debug {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		if err := opts.setupLogging(logCfg); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, cfg, appOptions{metrics: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("shutdown_close_failed", slog.String("error", err.Error()))
		}
	}()

	force := so.rebuild || async.HasIncompleteLock(cfg.DataDir)
	job := async.NewJob(cfg.DataDir, func(ctx context.Context, p *async.Progress) error {
		return a.checker.Reconcile(ctx, force, p)
	})
	job.Start(ctx)
	defer job.Stop()

	timeout := cfg.RequestTimeoutDuration()
	handler := httpapi.NewRouter(cfg.Server, timeout, httpapi.Deps{
		Search:        a.search,
		Catalog:       a.catalog,
		CustomID:      a.ids,
		Indexer:       a.indexer,
		Store:         a.store,
		Metrics:       a.metrics,
		IndexProgress: job.Progress(),
	})
	srv := httpapi.NewServer(cfg.Server.Addr, handler, timeout)

	slog.Info("invsearch_starting",
		slog.String("version", version.Short()),
		slog.String("addr", cfg.Server.Addr),
		slog.String("backend", a.store.Backend()),
		slog.String("index", cfg.IndexPath()),
		slog.Bool("rebuild", force))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpapi.Serve(gctx, srv) })

	if so.watch {
		path := opts.projectConfigPath()
		if path == "" {
			slog.Warn("config_watch_skipped", slog.String("reason", "no config file to watch"))
		} else {
			g.Go(func() error {
				return config.Watch(gctx, path, configReloadDebounce, func(next *config.Config) {
					applyReload(a, next)
				})
			})
		}
	}

	return g.Wait()
}

// applyReload applies the settings that can change while serving.
// Everything else is logged as needing a restart.
func applyReload(a *app, next *config.Config) {
	a.search.Engine().Reconfigure(next.Search)
	logging.SetLevel(next.Server.LogLevel)

	cur := a.cfg
	if next.Server.Addr != cur.Server.Addr ||
		next.Database.Backend != cur.Database.Backend ||
		next.DatabaseDSN() != cur.DatabaseDSN() ||
		next.IndexPath() != cur.IndexPath() {
		slog.Warn("config_change_requires_restart",
			slog.String("detail", "server address, database and index path are read at start"))
	}
	next.Server.Addr = cur.Server.Addr
	next.Database = cur.Database
	next.Index = cur.Index
	next.DataDir = cur.DataDir
	a.cfg = next
}
