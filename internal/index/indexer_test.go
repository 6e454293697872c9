package index

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/invsearch/internal/async"
	"github.com/Aman-CERP/invsearch/internal/store"
)

type fixture struct {
	store   *store.SQLStore
	writer  *Writer
	indexer *Indexer
	inv     *store.Inventory
	item    *store.Item
}

// newFixture seeds one inventory with one item whose Color is Red.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	inv := &store.Inventory{Title: "Paint cans", Description: "Leftover paint"}
	require.NoError(t, s.CreateInventory(ctx, inv))
	color := &store.CustomField{InventoryID: inv.ID, Name: "Color", Type: store.FieldSingleLineText}
	require.NoError(t, s.CreateField(ctx, color))
	red := "Red"
	item := &store.Item{InventoryID: inv.ID, CustomID: "PC-1", FieldValues: []store.FieldValue{{FieldID: color.ID, Text: &red}}}
	require.NoError(t, s.CreateItem(ctx, item))

	w := newMemWriter(t)
	return &fixture{store: s, writer: w, indexer: NewIndexer(s, w), inv: inv, item: item}
}

func TestItemDocument_ContentHasValueAndFieldPrefixedValue(t *testing.T) {
	blue := "Blue"
	n := "3"
	item := &store.Item{
		ID:          uuid.New(),
		InventoryID: uuid.New(),
		CustomID:    "X",
		FieldValues: []store.FieldValue{
			{FieldName: "Color", Text: &blue},
			{FieldName: "Empty", Text: new(string)},
			{Text: &n},
		},
	}

	doc := ItemDocument(item)

	assert.Equal(t, "Blue Color Blue 3", doc.Content)
	assert.Equal(t, doc.Content, doc.ContentPreview)
	assert.Equal(t, ItemDocID(item.ID), doc.DocID())
	assert.Equal(t, TypeItem, doc.DocType)
}

func TestItemDocument_PreviewIsTruncatedByRunes(t *testing.T) {
	long := strings.Repeat("é", PreviewLength+50)
	doc := ItemDocument(&store.Item{ID: uuid.New(), FieldValues: []store.FieldValue{{Text: &long}}})

	assert.Equal(t, PreviewLength, len([]rune(doc.ContentPreview)))
}

func TestParseDocID(t *testing.T) {
	id := uuid.New()

	kind, got, ok := ParseDocID(InventoryDocID(id))
	assert.True(t, ok)
	assert.Equal(t, TypeInventory, kind)
	assert.Equal(t, id, got)

	kind, _, ok = ParseDocID(ItemDocID(id))
	assert.True(t, ok)
	assert.Equal(t, TypeItem, kind)

	for _, bad := range []string{"", "item", "item:not-a-uuid", "thing:" + id.String()} {
		_, _, ok := ParseDocID(bad)
		assert.False(t, ok, bad)
	}
}

func TestIndexer_IndexAndRemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.indexer.IndexItem(ctx, f.item.ID))
	assert.Equal(t, []string{ItemDocID(f.item.ID)}, searchContent(t, f.writer, "red"))

	require.NoError(t, f.indexer.RemoveItem(ctx, f.item.ID))
	assert.Empty(t, searchContent(t, f.writer, "red"))
}

func TestIndexer_MissingEntitiesAreNoops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.NoError(t, f.indexer.IndexItem(ctx, uuid.New()))
	assert.NoError(t, f.indexer.IndexInventory(ctx, uuid.New()))

	count, err := f.writer.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexer_RemoveInventoryDropsItsItems(t *testing.T) {
	// Given: the inventory and its item are indexed
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.indexer.IndexInventory(ctx, f.inv.ID))
	require.NoError(t, f.indexer.IndexItem(ctx, f.item.ID))
	other := itemDoc("OTHER", "red")
	require.NoError(t, f.writer.Upsert(ctx, other))

	// When: the inventory is deleted from the store and the index
	require.NoError(t, f.store.DeleteInventory(ctx, f.inv.ID))
	require.NoError(t, f.indexer.RemoveInventory(ctx, f.inv.ID))

	// Then: only the unrelated document remains
	ids, err := f.writer.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{other.DocID()}, ids)
}

func TestIndexer_RebuildAllRestoresIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.indexer.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	before := searchContent(t, f.writer, "red")

	// When: the index is emptied and rebuilt
	ids, err := f.writer.AllIDs(ctx)
	require.NoError(t, err)
	require.NoError(t, f.writer.Delete(ctx, ids...))
	assert.Empty(t, searchContent(t, f.writer, "red"))

	_, err = f.indexer.RebuildAll(ctx)
	require.NoError(t, err)

	// Then
	assert.Equal(t, before, searchContent(t, f.writer, "red"))
}

// =============================================================================
// Consistency
// =============================================================================

func TestConsistencyChecker_FindsAndRepairsDrift(t *testing.T) {
	// Given: the item is missing and an orphan exists
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.indexer.IndexInventory(ctx, f.inv.ID))
	orphan := itemDoc("GONE", "ghost")
	require.NoError(t, f.writer.Upsert(ctx, orphan))
	checker := NewConsistencyChecker(f.store, f.indexer)

	// When
	res, err := checker.Check(ctx)
	require.NoError(t, err)

	// Then
	assert.False(t, res.Consistent())
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Indexed)
	require.Len(t, res.Inconsistencies, 2)
	byType := map[InconsistencyType]string{}
	for _, issue := range res.Inconsistencies {
		byType[issue.Type] = issue.DocID
	}
	assert.Equal(t, orphan.DocID(), byType[InconsistencyOrphan])
	assert.Equal(t, ItemDocID(f.item.ID), byType[InconsistencyMissing])

	quick, err := checker.QuickCheck(ctx)
	require.NoError(t, err)
	assert.True(t, quick, "counts alone can hide drift")

	// When: repairing
	repaired, err := checker.Repair(ctx, res.Inconsistencies)
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	after, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, after.Consistent())
}

func TestReconcile_RepairsDriftWithoutRebuilding(t *testing.T) {
	// Given: an existing index missing the item
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.indexer.IndexInventory(ctx, f.inv.ID))
	f.writer.fresh.Store(false)
	checker := NewConsistencyChecker(f.store, f.indexer)
	p := async.NewProgress()

	// When
	require.NoError(t, checker.Reconcile(ctx, false, p))

	// Then: only the missing document was written
	snap := p.Snapshot()
	assert.Equal(t, string(async.StageRepairing), snap.Stage)
	assert.Equal(t, 1, snap.Repaired)
	assert.Equal(t, 0, snap.Indexed)
	res, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, res.Consistent())
}

func TestReconcile_ForceRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writer.fresh.Store(false)
	p := async.NewProgress()

	require.NoError(t, NewConsistencyChecker(f.store, f.indexer).Reconcile(ctx, true, p))

	snap := p.Snapshot()
	assert.Equal(t, string(async.StageRebuilding), snap.Stage)
	assert.Equal(t, 2, snap.Indexed)
}

func TestReconcile_ConsistentIndexIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.indexer.RebuildAll(ctx)
	require.NoError(t, err)
	f.writer.fresh.Store(false)
	p := async.NewProgress()

	require.NoError(t, NewConsistencyChecker(f.store, f.indexer).Reconcile(ctx, false, p))

	snap := p.Snapshot()
	assert.Equal(t, string(async.StageChecking), snap.Stage)
	assert.Zero(t, snap.Repaired)
}

func TestInconsistencyType_String(t *testing.T) {
	assert.Equal(t, "orphan", InconsistencyOrphan.String())
	assert.Equal(t, "missing", InconsistencyMissing.String())
	assert.Equal(t, "unknown", InconsistencyType(9).String())
}
