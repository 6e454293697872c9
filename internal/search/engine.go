package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/invsearch/internal/config"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/index"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// storedFields are loaded with every hit.
var storedFields = []string{
	index.FieldID,
	index.FieldInventoryID,
	index.FieldTitle,
	index.FieldCustomID,
	index.FieldDescription,
	index.FieldContentPreview,
}

// Engine runs queries against the index. It is safe for concurrent use;
// tuning can be replaced while searches run.
type Engine struct {
	idx      bleve.Index
	analyzer analysis.Analyzer

	mu  sync.RWMutex
	cfg config.SearchConfig
}

// NewEngine creates an engine over idx. The analyzer is taken from the
// index mapping so queries are tokenised the way documents were.
func NewEngine(idx bleve.Index, cfg config.SearchConfig) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	a := idx.Mapping().AnalyzerNamed(index.Analyzer)
	if a == nil {
		return nil, fmt.Errorf("analyzer %q not found in index mapping", index.Analyzer)
	}
	return &Engine{idx: idx, analyzer: a, cfg: cfg}, nil
}

// Config returns the current tuning.
func (e *Engine) Config() config.SearchConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reconfigure replaces the tuning for subsequent searches.
func (e *Engine) Reconfigure(cfg config.SearchConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	slog.Info("search_tuning_updated",
		slog.Int("inventory_limit", cfg.InventoryLimit),
		slog.Int("item_limit", cfg.ItemLimit),
		slog.Bool("fuzzy_fallback", !cfg.DisableFuzzyFallback))
}

// Search runs text against both document types. A limit of zero skips that
// type. If neither type matches, the query is re-run once with the fuzzy
// tier.
func (e *Engine) Search(ctx context.Context, text string, inventoryLimit, itemLimit int) (*Hits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := e.Config()
	p := newPlan(e.analyzer, text)
	if p.empty() {
		return &Hits{}, nil
	}

	hits, err := e.run(ctx, p, cfg, false, inventoryLimit, itemLimit)
	if err != nil {
		return nil, err
	}
	if hits.Total() == 0 && p.canFuzz(cfg) {
		hits, err = e.run(ctx, p, cfg, true, inventoryLimit, itemLimit)
		if err != nil {
			return nil, err
		}
		hits.Fuzzy = true
		slog.Debug("search_fuzzy_fallback",
			slog.String("query", text),
			slog.Int("hits", hits.Total()))
	}
	hits.Terms = p.terms
	hits.Fielded = p.fielded != nil
	return hits, nil
}

// run searches inventories and items in parallel.
func (e *Engine) run(ctx context.Context, p *plan, cfg config.SearchConfig, fuzzy bool, inventoryLimit, itemLimit int) (*Hits, error) {
	hits := &Hits{}
	g, gctx := errgroup.WithContext(ctx)

	if inventoryLimit > 0 {
		g.Go(func() error {
			res, err := e.query(gctx, p.build(index.TypeInventory, cfg, fuzzy), inventoryLimit)
			if err != nil {
				return err
			}
			hits.Inventories = inventoryHits(res)
			return nil
		})
	}
	if itemLimit > 0 {
		g.Go(func() error {
			res, err := e.query(gctx, p.build(index.TypeItem, cfg, fuzzy), itemLimit)
			if err != nil {
				return err
			}
			hits.Items = itemHits(res, p.terms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.New(apperr.ErrCodeSearchFailed, "search failed", err)
	}
	return hits, nil
}

func (e *Engine) query(ctx context.Context, q query.Query, limit int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequestOptions(q, min(limit, MaxLimit), 0, false)
	req.Fields = storedFields
	return e.idx.SearchInContext(ctx, req)
}

func inventoryHits(res *bleve.SearchResult) []InventoryHit {
	out := make([]InventoryHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(stored(h, index.FieldID))
		if err != nil {
			continue
		}
		out = append(out, InventoryHit{
			ID:      id,
			Title:   stored(h, index.FieldTitle),
			Snippet: inventorySnippet(stored(h, index.FieldDescription)),
			Score:   h.Score,
		})
	}
	return out
}

func itemHits(res *bleve.SearchResult, terms []string) []ItemHit {
	out := make([]ItemHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(stored(h, index.FieldID))
		if err != nil {
			continue
		}
		inventoryID, _ := uuid.Parse(stored(h, index.FieldInventoryID))
		out = append(out, ItemHit{
			ID:          id,
			InventoryID: inventoryID,
			CustomID:    stored(h, index.FieldCustomID),
			Snippet:     itemSnippet(stored(h, index.FieldContentPreview), terms),
			Score:       h.Score,
		})
	}
	return out
}

// stored returns a stored string field of a hit.
func stored(h *bsearch.DocumentMatch, field string) string {
	s, _ := h.Fields[field].(string)
	return s
}
