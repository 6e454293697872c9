package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Aman-CERP/invsearch/internal/telemetry"
)

// TitleResolver batch-resolves inventory titles.
type TitleResolver interface {
	InventoryTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service is the search entry point used by the API and the CLI.
type Service struct {
	engine  *Engine
	titles  TitleResolver
	metrics *telemetry.QueryMetrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.QueryMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates the search façade.
func NewService(engine *Engine, titles TitleResolver, opts ...ServiceOption) *Service {
	s := &Service{engine: engine, titles: titles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying query engine.
func (s *Service) Engine() *Engine { return s.engine }

// Search answers q. A blank query gives an empty result. Negative limits
// use the configured defaults; limits above MaxLimit are capped.
func (s *Service) Search(ctx context.Context, q string, inventoryLimit, itemLimit int) (*Result, error) {
	if strings.TrimSpace(q) == "" {
		return emptyResult(q), nil
	}
	cfg := s.engine.Config()
	if inventoryLimit < 0 {
		inventoryLimit = cfg.InventoryLimit
	}
	if itemLimit < 0 {
		itemLimit = cfg.ItemLimit
	}

	start := time.Now()
	hits, err := s.engine.Search(ctx, q, min(inventoryLimit, MaxLimit), min(itemLimit, MaxLimit))
	if err != nil {
		slog.Error("search_failed", slog.String("query", q), slog.String("error", err.Error()))
		return nil, err
	}

	res := emptyResult(q)
	res.Inventories = append(res.Inventories, hits.Inventories...)
	res.Items = append(res.Items, hits.Items...)
	s.resolveTitles(ctx, res.Items)

	elapsed := time.Since(start)
	s.record(q, hits, elapsed)
	slog.Debug("search_complete",
		slog.String("query", q),
		slog.Int("inventories", len(res.Inventories)),
		slog.Int("items", len(res.Items)),
		slog.Bool("fuzzy", hits.Fuzzy),
		slog.Duration("duration", elapsed))
	return res, nil
}

// Suggest is the autocomplete variant of Search with small limits. Queries
// shorter than the configured minimum give an empty result.
func (s *Service) Suggest(ctx context.Context, q string) (*Result, error) {
	cfg := s.engine.Config()
	if utf8.RuneCountInString(strings.TrimSpace(q)) < cfg.SuggestMinLength {
		return emptyResult(q), nil
	}
	return s.Search(ctx, q, cfg.SuggestLimit, cfg.SuggestLimit)
}

// resolveTitles fills InventoryTitle with one store round trip. A lookup
// failure leaves titles empty.
func (s *Service) resolveTitles(ctx context.Context, items []ItemHit) {
	if len(items) == 0 || s.titles == nil {
		return
	}
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.InventoryID]; ok {
			continue
		}
		seen[it.InventoryID] = struct{}{}
		ids = append(ids, it.InventoryID)
	}

	titles, err := s.titles.InventoryTitles(ctx, ids)
	if err != nil {
		slog.Warn("search_title_lookup_failed", slog.String("error", err.Error()))
		return
	}
	for i := range items {
		items[i].InventoryTitle = titles[items[i].InventoryID]
	}
}

func (s *Service) record(q string, hits *Hits, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	path := telemetry.PathStandard
	switch {
	case hits.Fuzzy:
		path = telemetry.PathFuzzy
	case hits.Fielded:
		path = telemetry.PathFielded
	}
	terms := hits.Terms
	if terms == nil {
		terms = []string{}
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       q,
		Terms:       terms,
		Path:        path,
		ResultCount: hits.Total(),
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
}
