package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedInventory(t *testing.T, s *SQLStore, title string) *Inventory {
	t.Helper()
	inv := &Inventory{Title: title, Description: title + " description", OwnerID: "owner-1"}
	require.NoError(t, s.CreateInventory(context.Background(), inv))
	return inv
}

func strPtr(v string) *string { return &v }

func TestOpen_UnknownBackendFails(t *testing.T) {
	_, err := Open("oracle", "", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestOpenSQLite_FileBackedReopens(t *testing.T) {
	// Given: a file-backed store with one inventory
	path := filepath.Join(t.TempDir(), "data", "inventory.db")
	s, err := Open(BackendSQLite, path, Options{})
	require.NoError(t, err)
	inv := &Inventory{Title: "Tools"}
	require.NoError(t, s.CreateInventory(context.Background(), inv))
	require.NoError(t, s.Close())

	// When: reopening
	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	// Then: data survived and schema init is idempotent
	got, err := s2.GetInventory(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tools", got.Title)
	assert.Equal(t, BackendSQLite, s2.Backend())
}

func TestInventory_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inv := seedInventory(t, s, "Books")
	assert.NotEqual(t, uuid.Nil, inv.ID)

	inv.Title = "Rare Books"
	inv.IsPublic = true
	require.NoError(t, s.UpdateInventory(ctx, inv))

	got, err := s.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rare Books", got.Title)
	assert.True(t, got.IsPublic)

	require.NoError(t, s.DeleteInventory(ctx, inv.ID))
	_, err = s.GetInventory(ctx, inv.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.DeleteInventory(ctx, inv.ID), apperr.ErrNotFound)
}

func TestInventoryTitles_BatchLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := seedInventory(t, s, "Alpha")
	b := seedInventory(t, s, "Beta")

	titles, err := s.InventoryTitles(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})

	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{a.ID: "Alpha", b.ID: "Beta"}, titles)

	empty, err := s.InventoryTitles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestItem_RoundTripsFieldValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Paint")

	color := &CustomField{InventoryID: inv.ID, Name: "Color", Type: FieldSingleLineText, Position: 1}
	volume := &CustomField{InventoryID: inv.ID, Name: "Volume", Type: FieldNumber, Position: 2}
	glossy := &CustomField{InventoryID: inv.ID, Name: "Glossy", Type: FieldBoolean, Position: 3}
	for _, f := range []*CustomField{color, volume, glossy} {
		require.NoError(t, s.CreateField(ctx, f))
		assert.NotZero(t, f.ID)
	}

	vol := decimal.RequireFromString("2.50")
	yes := true
	seq := int64(1)
	item := &Item{
		InventoryID:    inv.ID,
		CustomID:       "PAINT-0001",
		SequenceNumber: &seq,
		FieldValues: []FieldValue{
			{FieldID: color.ID, Text: strPtr("Red")},
			{FieldID: volume.ID, Number: &vol},
			{FieldID: glossy.ID, Bool: &yes},
		},
	}
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAINT-0001", got.CustomID)
	require.NotNil(t, got.SequenceNumber)
	assert.Equal(t, int64(1), *got.SequenceNumber)
	require.Len(t, got.FieldValues, 3)
	assert.Equal(t, "Color", got.FieldValues[0].FieldName)
	assert.Equal(t, "Red", got.FieldValues[0].Canonical())
	assert.Equal(t, FieldNumber, got.FieldValues[1].FieldType)
	assert.Equal(t, "2.5", got.FieldValues[1].Canonical())
	assert.Equal(t, "true", got.FieldValues[2].Canonical())

	all, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].FieldValues, 3)
}

func TestItem_DuplicateCustomIDRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Chairs")
	other := seedInventory(t, s, "Tables")

	require.NoError(t, s.CreateItem(ctx, &Item{InventoryID: inv.ID, CustomID: "X-1"}))

	err := s.CreateItem(ctx, &Item{InventoryID: inv.ID, CustomID: "X-1"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateCustomID)

	// Uniqueness is per inventory
	assert.NoError(t, s.CreateItem(ctx, &Item{InventoryID: other.ID, CustomID: "X-1"}))
}

func TestItem_UpdateReplacesValuesAndDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Lamps")
	f := &CustomField{InventoryID: inv.ID, Name: "Notes", Type: FieldMultiLineText}
	require.NoError(t, s.CreateField(ctx, f))

	item := &Item{InventoryID: inv.ID, CustomID: "L-1", FieldValues: []FieldValue{{FieldID: f.ID, Text: strPtr("old")}}}
	require.NoError(t, s.CreateItem(ctx, item))

	item.CustomID = "L-2"
	item.FieldValues = []FieldValue{{FieldID: f.ID, Text: strPtr("new")}}
	require.NoError(t, s.UpdateItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "L-2", got.CustomID)
	require.Len(t, got.FieldValues, 1)
	assert.Equal(t, "new", got.FieldValues[0].Canonical())

	// Deleting the inventory removes its items
	require.NoError(t, s.DeleteInventory(ctx, inv.ID))
	_, err = s.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestElements_AddAssignsPositionsAndCreatesCounter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Assets")

	// Given: no counter yet
	_, err := s.CurrentSequence(ctx, inv.ID)
	assert.ErrorIs(t, err, apperr.ErrSequenceNotConfigured)

	// When: adding a fixed prefix and a sequence
	prefix := &Element{InventoryID: inv.ID, Kind: KindFixedText, Text: "INV-"}
	seq := &Element{InventoryID: inv.ID, Kind: KindSequence, Format: "D4"}
	require.NoError(t, s.AddElement(ctx, prefix))
	require.NoError(t, s.AddElement(ctx, seq))

	// Then: positions follow insertion and the counter starts at 1
	assert.Equal(t, 1, prefix.Position)
	assert.Equal(t, 2, seq.Position)
	next, err := s.CurrentSequence(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	els, err := s.ListElements(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.Equal(t, KindFixedText, els[0].Kind)
	assert.Equal(t, "D4", els[1].Format)
}

func TestElements_DuplicatePositionIsOrderConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Assets")
	require.NoError(t, s.AddElement(ctx, &Element{InventoryID: inv.ID, Position: 1, Kind: KindGuid}))

	err := s.AddElement(ctx, &Element{InventoryID: inv.ID, Position: 1, Kind: KindRandom6Digits})

	assert.ErrorIs(t, err, apperr.ErrOrderConflict)
}

func TestElements_ReorderAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Assets")
	a := &Element{InventoryID: inv.ID, Kind: KindFixedText, Text: "A"}
	b := &Element{InventoryID: inv.ID, Kind: KindFixedText, Text: "B"}
	c := &Element{InventoryID: inv.ID, Kind: KindFixedText, Text: "C"}
	for _, el := range []*Element{a, b, c} {
		require.NoError(t, s.AddElement(ctx, el))
	}

	require.NoError(t, s.ReorderElements(ctx, inv.ID, []int64{c.ID, a.ID, b.ID}))
	els, err := s.ListElements(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, []string{els[0].Text, els[1].Text, els[2].Text})
	assert.Equal(t, []int{1, 2, 3}, []int{els[0].Position, els[1].Position, els[2].Position})

	// A partial list is rejected and nothing changes
	err = s.ReorderElements(ctx, inv.ID, []int64{a.ID, b.ID})
	assert.Equal(t, apperr.ErrCodeInvalidInput, apperr.GetCode(err))

	require.NoError(t, s.DeleteElement(ctx, inv.ID, a.ID))
	els, err = s.ListElements(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, els, 2)
	assert.ErrorIs(t, s.DeleteElement(ctx, inv.ID, a.ID), apperr.ErrNotFound)
}

func TestInSerializableTx_CommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Counters")
	require.NoError(t, s.EnsureSequence(ctx, inv.ID))
	require.NoError(t, s.EnsureSequence(ctx, inv.ID), "EnsureSequence is idempotent")

	// Commit path
	err := s.InSerializableTx(ctx, func(tx SequenceTx) error {
		next, ok, err := tx.ReadSequence(ctx, inv.ID)
		require.NoError(t, err)
		require.True(t, ok)
		return tx.WriteSequence(ctx, inv.ID, next+1)
	})
	require.NoError(t, err)

	// Rollback path
	boom := errors.New("boom")
	err = s.InSerializableTx(ctx, func(tx SequenceTx) error {
		require.NoError(t, tx.WriteSequence(ctx, inv.ID, 100))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	next, err := s.CurrentSequence(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestMaxSequenceNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inv := seedInventory(t, s, "Scan")

	got, err := s.MaxSequenceNumber(ctx, inv.ID)
	require.NoError(t, err)
	assert.Zero(t, got)

	for _, n := range []int64{3, 7, 5} {
		n := n
		require.NoError(t, s.CreateItem(ctx, &Item{InventoryID: inv.ID, CustomID: uuid.NewString(), SequenceNumber: &n}))
	}
	got, err = s.MaxSequenceNumber(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestPostgresDialect_ClassifiesSQLState(t *testing.T) {
	d := postgresDialect()

	assert.False(t, d.isConflict(errors.New("plain")))
	assert.Equal(t, "", pgCode(errors.New("plain")))
	assert.Equal(t, BackendPostgres, d.name)
	require.NotNil(t, d.txOptions)
}
