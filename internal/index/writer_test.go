package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

func newMemWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := Open("", Options{BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func itemDoc(customID, content string) *Document {
	return &Document{
		DocType:        TypeItem,
		ID:             uuid.NewString(),
		InventoryID:    uuid.NewString(),
		CustomID:       customID,
		Content:        content,
		ContentPreview: content,
	}
}

func searchContent(t *testing.T, w *Writer, term string) []string {
	t.Helper()
	q := bleve.NewMatchQuery(term)
	q.SetField(FieldContent)
	res, err := w.Index().Search(bleve.NewSearchRequest(q))
	require.NoError(t, err)
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestWriter_UpsertReplacesDocument(t *testing.T) {
	// Given: a document about apples
	ctx := context.Background()
	w := newMemWriter(t)
	doc := itemDoc("A-1", "apple")
	require.NoError(t, w.Upsert(ctx, doc))
	assert.Equal(t, []string{doc.DocID()}, searchContent(t, w, "apple"))

	// When: the same entity is upserted with new content
	doc.Content = "banana"
	require.NoError(t, w.Upsert(ctx, doc))

	// Then: exactly one live document with the new content
	assert.Empty(t, searchContent(t, w, "apple"))
	assert.Equal(t, []string{doc.DocID()}, searchContent(t, w, "banana"))
	count, err := w.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestWriter_DeleteIsTombstone(t *testing.T) {
	ctx := context.Background()
	w := newMemWriter(t)
	doc := itemDoc("A-1", "cherry")
	require.NoError(t, w.Upsert(ctx, doc))

	require.NoError(t, w.Delete(ctx, doc.DocID(), "item:unknown"))

	assert.Empty(t, searchContent(t, w, "cherry"))
}

func TestWriter_RebuildReplacesEverything(t *testing.T) {
	// Given: an index with stale content
	ctx := context.Background()
	w := newMemWriter(t)
	stale := itemDoc("OLD", "stale")
	kept := itemDoc("KEEP", "kept old")
	require.NoError(t, w.Upsert(ctx, stale, kept))

	// When: rebuilding with five documents (three batches of two)
	kept.Content = "kept fresh"
	docs := []*Document{kept}
	for i := 0; i < 4; i++ {
		docs = append(docs, itemDoc("N", "fresh"))
	}
	require.NoError(t, w.Rebuild(ctx, docs))

	// Then
	ids, err := w.AllIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.NotContains(t, ids, stale.DocID())
	assert.Len(t, searchContent(t, w, "fresh"), 5)
	assert.Empty(t, searchContent(t, w, "stale"))
	assert.False(t, w.NeedsRebuild())
}

func TestWriter_ConcurrentUpsertsAreSerialised(t *testing.T) {
	ctx := context.Background()
	w := newMemWriter(t)

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() { errs <- w.Upsert(ctx, itemDoc("C", "parallel")) }()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
	}

	count, err := w.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), count)
}

func TestWriter_ClosedRejectsWrites(t *testing.T) {
	w, err := Open("", Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	err = w.Upsert(context.Background(), itemDoc("X", "x"))

	assert.Equal(t, apperr.ErrCodeIndexFailed, apperr.GetCode(err))
}

func TestWriter_CancelledContext(t *testing.T) {
	w := newMemWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Upsert(ctx, itemDoc("X", "x"))

	// Either the command was refused or it completed; it never blocks
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

// =============================================================================
// On-disk behaviour
// =============================================================================

func TestOpen_SecondWriterIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")
	w, err := Open(path, Options{})
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, w.NeedsRebuild(), "a new index needs a rebuild")

	_, err = Open(path, Options{})

	assert.ErrorIs(t, err, apperr.ErrIndexLocked)
	assert.True(t, apperr.IsRetryable(err))
}

func TestOpen_ReopensPersistedIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "search.bleve")
	w, err := Open(path, Options{})
	require.NoError(t, err)
	doc := itemDoc("P-1", "persisted")
	require.NoError(t, w.Upsert(ctx, doc))
	require.NoError(t, w.Close())

	w2, err := Open(path, Options{})
	require.NoError(t, err)
	defer w2.Close()

	assert.False(t, w2.NeedsRebuild())
	assert.Equal(t, []string{doc.DocID()}, searchContent(t, w2, "persisted"))
}

func TestOpen_ClearsCorruptIndex(t *testing.T) {
	// Given: an index directory with a truncated meta file
	path := filepath.Join(t.TempDir(), "search.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), []byte(`{"storage":`), 0o644))

	// When
	w, err := Open(path, Options{})

	// Then: a fresh index replaces it and asks for a rebuild
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, w.NeedsRebuild())
	count, err := w.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestValidateIntegrity(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, validateIntegrity(filepath.Join(dir, "absent")))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nometa"), 0o755))
	assert.Error(t, validateIntegrity(filepath.Join(dir, "nometa")))

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(empty, "index_meta.json"), nil, 0o644))
	assert.Error(t, validateIntegrity(empty))
}

func TestIsCorruptionError(t *testing.T) {
	assert.False(t, isCorruptionError(nil))
	assert.True(t, isCorruptionError(bleve.ErrorIndexMetaCorrupt))
	assert.False(t, isCorruptionError(assert.AnError))
}
