package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// DefaultBatchSize is the number of documents per batch during a rebuild.
const DefaultBatchSize = 500

// Options configures a Writer.
type Options struct {
	// BatchSize bounds rebuild batches. Zero uses DefaultBatchSize.
	BatchSize int
}

type opKind int

const (
	opUpsert opKind = iota
	opDelete
	opRebuild
)

func (o opKind) String() string {
	switch o {
	case opUpsert:
		return "upsert"
	case opDelete:
		return "delete"
	case opRebuild:
		return "rebuild"
	default:
		return "unknown"
	}
}

type command struct {
	op    opKind
	docs  []*Document
	ids   []string
	ctx   context.Context
	reply chan error
}

// Writer owns the index. Every mutation is executed by a single coordinator
// goroutine in submission order; Index exposes the same handle to readers.
type Writer struct {
	idx       bleve.Index
	path      string
	lock      *writerLock
	batchSize int
	fresh     atomic.Bool

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the index at path and starts its coordinator. An
// empty path gives an in-memory index. Another process holding the index
// returns ErrIndexLocked.
func Open(path string, opts Options) (*Writer, error) {
	var lock *writerLock
	if path != "" {
		lock = newWriterLock(path)
		if err := lock.acquire(); err != nil {
			return nil, err
		}
	}

	res, err := openBleve(path)
	if err != nil {
		if lock != nil {
			_ = lock.release()
		}
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	w := &Writer{
		idx:       res.index,
		path:      path,
		lock:      lock,
		batchSize: batchSize,
		cmds:      make(chan command),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.fresh.Store(res.created || res.cleared)
	go w.run()

	slog.Info("search_index_opened",
		slog.String("path", displayPath(path)),
		slog.Bool("created", res.created),
		slog.Bool("cleared", res.cleared))
	return w, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// Index returns the bleve index for searching.
func (w *Writer) Index() bleve.Index { return w.idx }

// NeedsRebuild reports whether the index was created or cleared on open
// and holds no projection of the system of record yet.
func (w *Writer) NeedsRebuild() bool { return w.fresh.Load() }

// Upsert atomically replaces each document.
func (w *Writer) Upsert(ctx context.Context, docs ...*Document) error {
	if len(docs) == 0 {
		return nil
	}
	return w.submit(ctx, command{op: opUpsert, docs: docs})
}

// Delete removes documents by id. Unknown ids are ignored.
func (w *Writer) Delete(ctx context.Context, docIDs ...string) error {
	if len(docIDs) == 0 {
		return nil
	}
	return w.submit(ctx, command{op: opDelete, ids: docIDs})
}

// Rebuild replaces the entire index content with docs.
func (w *Writer) Rebuild(ctx context.Context, docs []*Document) error {
	return w.submit(ctx, command{op: opRebuild, docs: docs})
}

// DocCount returns the number of live documents.
func (w *Writer) DocCount() (uint64, error) {
	return w.idx.DocCount()
}

// AllIDs lists every document id in the index.
func (w *Writer) AllIDs(ctx context.Context) ([]string, error) {
	return allIDs(ctx, w.idx)
}

// Close stops the coordinator, closes the index and releases the lock.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
		<-w.done
		if err := w.idx.Close(); err != nil {
			w.closeErr = fmt.Errorf("failed to close index: %w", err)
		}
		if w.lock != nil {
			if err := w.lock.release(); err != nil && w.closeErr == nil {
				w.closeErr = err
			}
		}
	})
	return w.closeErr
}

func (w *Writer) submit(ctx context.Context, cmd command) error {
	cmd.ctx = ctx
	cmd.reply = make(chan error, 1)
	select {
	case w.cmds <- cmd:
	case <-w.quit:
		return apperr.New(apperr.ErrCodeIndexFailed, "index writer is closed", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once received the command always completes and replies.
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the coordinator loop.
func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case cmd := <-w.cmds:
			start := time.Now()
			err := w.apply(cmd)
			if err != nil {
				slog.Error("index_write_failed",
					slog.String("op", cmd.op.String()),
					slog.String("error", err.Error()))
			} else {
				slog.Debug("index_write",
					slog.String("op", cmd.op.String()),
					slog.Int("docs", len(cmd.docs)+len(cmd.ids)),
					slog.Duration("duration", time.Since(start)))
			}
			cmd.reply <- err
		case <-w.quit:
			return
		}
	}
}

func (w *Writer) apply(cmd command) error {
	switch cmd.op {
	case opUpsert:
		batch := w.idx.NewBatch()
		for _, doc := range cmd.docs {
			id := doc.DocID()
			batch.Delete(id)
			if err := batch.Index(id, doc); err != nil {
				return apperr.New(apperr.ErrCodeIndexFailed, fmt.Sprintf("failed to index document %s", id), err)
			}
		}
		return w.execute(batch)
	case opDelete:
		batch := w.idx.NewBatch()
		for _, id := range cmd.ids {
			batch.Delete(id)
		}
		return w.execute(batch)
	case opRebuild:
		return w.rebuild(cmd.ctx, cmd.docs)
	}
	return apperr.InternalError(fmt.Sprintf("unknown index operation %d", cmd.op), nil)
}

// rebuild deletes every existing document, then adds docs in batches.
// Deletes of ids that are about to be re-added travel with their new
// version so searches never observe the entity missing.
func (w *Writer) rebuild(ctx context.Context, docs []*Document) error {
	start := time.Now()
	existing, err := allIDs(ctx, w.idx)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		keep[doc.DocID()] = struct{}{}
	}
	stale := w.idx.NewBatch()
	removed := 0
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			stale.Delete(id)
			removed++
		}
	}
	if err := w.execute(stale); err != nil {
		return err
	}

	for i := 0; i < len(docs); i += w.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+w.batchSize, len(docs))
		batch := w.idx.NewBatch()
		for _, doc := range docs[i:end] {
			id := doc.DocID()
			batch.Delete(id)
			if err := batch.Index(id, doc); err != nil {
				return apperr.New(apperr.ErrCodeIndexFailed, fmt.Sprintf("failed to index document %s", id), err)
			}
		}
		if err := w.execute(batch); err != nil {
			return err
		}
	}

	w.fresh.Store(false)
	slog.Info("search_index_rebuilt",
		slog.Int("documents", len(docs)),
		slog.Int("removed", removed),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (w *Writer) execute(batch *bleve.Batch) error {
	if batch.Size() == 0 {
		return nil
	}
	if err := w.idx.Batch(batch); err != nil {
		return apperr.New(apperr.ErrCodeIndexFailed, "failed to execute index batch", err)
	}
	return nil
}

// allIDs pages through the whole index in id order.
func allIDs(ctx context.Context, idx bleve.Index) ([]string, error) {
	return collectIDs(ctx, idx, bleve.NewMatchAllQuery())
}

// collectIDs returns the ids of every document matching q, paging with
// search_after so large result sets stay cheap.
func collectIDs(ctx context.Context, idx bleve.Index, q query.Query) ([]string, error) {
	const page = 1000
	var ids []string
	var after []string
	for {
		req := bleve.NewSearchRequestOptions(q, page, 0, false)
		req.SortBy([]string{"_id"})
		if after != nil {
			req.SearchAfter = after
		}
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, apperr.New(apperr.ErrCodeSearchFailed, "failed to list index documents", err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < page {
			return ids, nil
		}
		after = []string{res.Hits[len(res.Hits)-1].ID}
	}
}
