package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// Indexer keeps the index in step with the system of record, one entity at
// a time or wholesale.
type Indexer struct {
	store  store.Reader
	writer *Writer
}

// NewIndexer creates an entity indexer.
func NewIndexer(r store.Reader, w *Writer) *Indexer {
	return &Indexer{store: r, writer: w}
}

// Writer returns the underlying index writer.
func (x *Indexer) Writer() *Writer { return x.writer }

// IndexInventory projects the inventory. A missing inventory is a no-op.
func (x *Indexer) IndexInventory(ctx context.Context, id uuid.UUID) error {
	inv, err := x.store.GetInventory(ctx, id)
	if apperr.GetCode(err) == apperr.ErrCodeNotFound {
		slog.Debug("index_skip_missing", slog.String("inventory_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}
	return x.writer.Upsert(ctx, InventoryDocument(inv))
}

// RemoveInventory deletes the inventory's document and every item document
// that belongs to it.
func (x *Indexer) RemoveInventory(ctx context.Context, id uuid.UUID) error {
	ids, err := x.itemDocIDs(ctx, id)
	if err != nil {
		return err
	}
	return x.writer.Delete(ctx, append(ids, InventoryDocID(id))...)
}

// IndexItem projects the item. A missing item is a no-op.
func (x *Indexer) IndexItem(ctx context.Context, id uuid.UUID) error {
	item, err := x.store.GetItem(ctx, id)
	if apperr.GetCode(err) == apperr.ErrCodeNotFound {
		slog.Debug("index_skip_missing", slog.String("item_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}
	return x.writer.Upsert(ctx, ItemDocument(item))
}

// RemoveItem deletes the item's document.
func (x *Indexer) RemoveItem(ctx context.Context, id uuid.UUID) error {
	return x.writer.Delete(ctx, ItemDocID(id))
}

// RebuildAll reloads every inventory and item and replaces the index
// content. Returns the number of documents indexed.
func (x *Indexer) RebuildAll(ctx context.Context) (int, error) {
	start := time.Now()

	var inventories []*store.Inventory
	var items []*store.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inventories, err = x.store.ListInventories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = x.store.ListItems(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	docs := make([]*Document, 0, len(inventories)+len(items))
	for _, inv := range inventories {
		docs = append(docs, InventoryDocument(inv))
	}
	for _, item := range items {
		docs = append(docs, ItemDocument(item))
	}
	if err := x.writer.Rebuild(ctx, docs); err != nil {
		return 0, err
	}

	slog.Info("rebuild_all_complete",
		slog.Int("inventories", len(inventories)),
		slog.Int("items", len(items)),
		slog.Duration("duration", time.Since(start)))
	return len(docs), nil
}

// itemDocIDs finds the item documents of an inventory in the index itself,
// since the rows may already be gone from the store.
func (x *Indexer) itemDocIDs(ctx context.Context, inventoryID uuid.UUID) ([]string, error) {
	q := bleve.NewTermQuery(inventoryID.String())
	q.SetField(FieldInventoryID)
	return collectIDs(ctx, x.writer.Index(), q)
}
