package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/invsearch/internal/catalog"
	"github.com/Aman-CERP/invsearch/internal/config"
	"github.com/Aman-CERP/invsearch/internal/customid"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/index"
	"github.com/Aman-CERP/invsearch/internal/search"
	"github.com/Aman-CERP/invsearch/internal/sequence"
	"github.com/Aman-CERP/invsearch/internal/store"
	"github.com/Aman-CERP/invsearch/internal/telemetry"
)

// app is the wired service graph shared by serve and the maintenance
// commands.
type app struct {
	cfg     *config.Config
	store   store.Store
	writer  *index.Writer
	indexer *index.Indexer
	checker *index.ConsistencyChecker
	search  *search.Service
	ids     *customid.Service
	catalog *catalog.Catalog
	metrics *telemetry.QueryMetrics
}

// appOptions selects optional parts of the graph.
type appOptions struct {
	// metrics records query telemetry in the system-of-record database.
	metrics bool
}

// openApp opens the store and the index and wires every service on top.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	s, err := store.Open(cfg.Database.Backend, cfg.DatabaseDSN(), store.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeStoreUnavailable, "failed to open the database", err).
			WithDetail("backend", cfg.Database.Backend)
	}
	a := &app{cfg: cfg, store: s}

	a.writer, err = index.Open(cfg.IndexPath(), index.Options{BatchSize: cfg.Index.BatchSize})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engine, err := search.NewEngine(a.writer.Index(), cfg.Search)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var searchOpts []search.ServiceOption
	if opts.metrics && !cfg.Telemetry.Disabled {
		ms, err := telemetry.NewSQLMetricsStore(ctx, s)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		mcfg := telemetry.DefaultQueryMetricsConfig()
		mcfg.FlushInterval = cfg.TelemetryFlushInterval()
		a.metrics = telemetry.NewQueryMetricsWithConfig(ms, mcfg)
		searchOpts = append(searchOpts, search.WithMetrics(a.metrics))
	}

	a.search = search.NewService(engine, s, searchOpts...)
	a.ids = customid.NewService(s, sequence.New(cfg.Sequence.Strategy, s, cfg.Sequence.MaxAttempts))
	a.indexer = index.NewIndexer(s, a.writer)
	a.checker = index.NewConsistencyChecker(s, a.indexer)
	a.catalog = catalog.New(s, a.indexer, a.ids)
	return a, nil
}

// Close flushes telemetry, then closes the index and the store.
func (a *app) Close() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.writer != nil {
		errs = append(errs, a.writer.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
