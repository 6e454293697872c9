package customid

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/sequence"
	"github.com/Aman-CERP/invsearch/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLStore, uuid.UUID) {
	t.Helper()
	s, err := store.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	inv := &store.Inventory{Title: "Equipment"}
	require.NoError(t, s.CreateInventory(context.Background(), inv))

	svc := NewService(s, sequence.NewAllocator(s, 3), WithClock(func() time.Time { return fixedNow }))
	return svc, s, inv.ID
}

func addElements(t *testing.T, svc *Service, invID uuid.UUID, inputs ...ElementInput) {
	t.Helper()
	for _, in := range inputs {
		_, err := svc.AddElement(context.Background(), invID, in)
		require.NoError(t, err)
	}
}

func TestGenerate_AdvancesSequenceOnce(t *testing.T) {
	// Given: INV- followed by a four digit sequence
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindFixedText, Text: "INV-"},
		ElementInput{Kind: store.KindSequence, Format: "D4"},
	)

	// When: generating twice
	first, err := svc.Generate(ctx, invID)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, invID)
	require.NoError(t, err)

	// Then
	assert.Equal(t, "INV-0001", first.CustomID)
	require.NotNil(t, first.SequenceNumber)
	assert.Equal(t, int64(1), *first.SequenceNumber)
	assert.Equal(t, "INV-0002", second.CustomID)

	ok, err := svc.Matches(ctx, invID, second.CustomID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPreview_DoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindFixedText, Text: "A"},
		ElementInput{Kind: store.KindSequence, Format: "000"},
	)

	p1, err := svc.Preview(ctx, invID)
	require.NoError(t, err)
	p2, err := svc.Preview(ctx, invID)
	require.NoError(t, err)
	g, err := svc.Generate(ctx, invID)
	require.NoError(t, err)

	assert.Equal(t, "A001", p1.CustomID)
	assert.Equal(t, p1, p2)
	assert.Equal(t, "A001", g.CustomID)
}

func TestGenerate_WithoutSequenceLeavesNumberNil(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindDateTime, Format: "yyyy"},
		ElementInput{Kind: store.KindFixedText, Text: "-"},
		ElementInput{Kind: store.KindGuid},
	)

	got, err := svc.Generate(ctx, invID)

	require.NoError(t, err)
	assert.Nil(t, got.SequenceNumber)
	assert.Len(t, got.CustomID, len("2026-")+32)
	assert.Equal(t, "2026-", got.CustomID[:5])
}

func TestGenerate_EmptyTemplate(t *testing.T) {
	svc, _, invID := newTestService(t)

	_, err := svc.Generate(context.Background(), invID)

	assert.ErrorIs(t, err, apperr.ErrTemplateNotConfigured)
	assert.True(t, apperr.IsFatal(err))
}

func TestGenerate_UnsupportedKindDoesNotConsumeSequence(t *testing.T) {
	// Given: a stored template with an unknown element after a sequence
	ctx := context.Background()
	svc, s, invID := newTestService(t)
	addElements(t, svc, invID, ElementInput{Kind: store.KindSequence})
	require.NoError(t, s.AddElement(ctx, &store.Element{InventoryID: invID, Kind: "Barcode"}))

	// When
	_, err := svc.Generate(ctx, invID)

	// Then
	assert.ErrorIs(t, err, apperr.ErrUnsupportedElement)
	next, err := s.CurrentSequence(ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestValidate_ReportsMismatchAndCapturesSequence(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindFixedText, Text: "BK-"},
		ElementInput{Kind: store.KindSequence, Format: "D3"},
	)

	seq, err := svc.Validate(ctx, invID, "BK-017")
	require.NoError(t, err)
	require.NotNil(t, seq)
	assert.Equal(t, int64(17), *seq)

	_, err = svc.Validate(ctx, invID, "XX-017")
	assert.ErrorIs(t, err, apperr.ErrCustomIDMismatch)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details, "customId")
}

func TestClaim_MovesCounterPastSuppliedNumber(t *testing.T) {
	// Given: BK-### with an untouched counter
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindFixedText, Text: "BK-"},
		ElementInput{Kind: store.KindSequence, Format: "D3"},
	)

	// When: Validate is read-only but Claim reserves the number
	_, err := svc.Validate(ctx, invID, "BK-004")
	require.NoError(t, err)
	preview, err := svc.Preview(ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, "BK-001", preview.CustomID)

	seq, err := svc.Claim(ctx, invID, "BK-004")
	require.NoError(t, err)
	require.NotNil(t, seq)
	assert.Equal(t, int64(4), *seq)

	// Then
	next, err := svc.Generate(ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, "BK-005", next.CustomID)

	_, err = svc.Claim(ctx, invID, "XX-9")
	assert.ErrorIs(t, err, apperr.ErrCustomIDMismatch)
}

func TestTemplate_CacheFollowsEdits(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID, ElementInput{Kind: store.KindFixedText, Text: "OLD"})

	ok, err := svc.Matches(ctx, invID, "OLD")
	require.NoError(t, err)
	assert.True(t, ok)

	// When: the element is edited
	current, err := svc.Elements(ctx, invID)
	require.NoError(t, err)
	_, err = svc.UpdateElement(ctx, invID, current[0].ID, ElementInput{Kind: store.KindFixedText, Text: "NEW"})
	require.NoError(t, err)

	// Then: the cached pattern is not reused
	ok, err = svc.Matches(ctx, invID, "OLD")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.Matches(ctx, invID, "NEW")
	require.NoError(t, err)
	assert.True(t, ok)
}

// =============================================================================
// Template management
// =============================================================================

func TestAddElement_ValidatesInput(t *testing.T) {
	svc, _, invID := newTestService(t)
	tests := []struct {
		name  string
		in    ElementInput
		field string
	}{
		{"missing kind", ElementInput{}, "kind"},
		{"unknown kind", ElementInput{Kind: "Barcode"}, "kind"},
		{"fixed text needs text", ElementInput{Kind: store.KindFixedText}, "text"},
		{"format too long", ElementInput{Kind: store.KindDateTime, Format: string(make([]byte, 51))}, "format"},
		{"negative position", ElementInput{Kind: store.KindGuid, Position: -1}, "position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddElement(context.Background(), invID, tt.in)
			require.Error(t, err)
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.ErrCodeInvalidInput, ae.Code)
			assert.Contains(t, ae.Details, tt.field)
		})
	}
}

func TestAddElement_SequenceCreatesCounter(t *testing.T) {
	ctx := context.Background()
	svc, s, invID := newTestService(t)

	el, err := svc.AddElement(ctx, invID, ElementInput{Kind: store.KindSequence, Format: "D2"})

	require.NoError(t, err)
	assert.Equal(t, 1, el.Position)
	next, err := s.CurrentSequence(ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestAddElement_DuplicatePositionIsOrderConflict(t *testing.T) {
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID, ElementInput{Kind: store.KindGuid, Position: 1})

	_, err := svc.AddElement(context.Background(), invID, ElementInput{Kind: store.KindRandom6Digits, Position: 1})

	assert.ErrorIs(t, err, apperr.ErrOrderConflict)
}

func TestReorder_ChangesRenderedOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID,
		ElementInput{Kind: store.KindFixedText, Text: "A"},
		ElementInput{Kind: store.KindFixedText, Text: "B"},
	)
	current, err := svc.Elements(ctx, invID)
	require.NoError(t, err)

	reordered, err := svc.Reorder(ctx, invID, ReorderInput{ElementIDs: []int64{current[1].ID, current[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, "B", reordered[0].Text)

	got, err := svc.Generate(ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, "BA", got.CustomID)

	_, err = svc.Reorder(ctx, invID, ReorderInput{ElementIDs: []int64{current[0].ID, current[0].ID}})
	assert.Equal(t, apperr.ErrCodeInvalidInput, apperr.GetCode(err))
}

func TestDeleteElement(t *testing.T) {
	ctx := context.Background()
	svc, _, invID := newTestService(t)
	addElements(t, svc, invID, ElementInput{Kind: store.KindFixedText, Text: "A"})
	current, err := svc.Elements(ctx, invID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteElement(ctx, invID, current[0].ID))

	_, err = svc.Generate(ctx, invID)
	assert.ErrorIs(t, err, apperr.ErrTemplateNotConfigured)
	assert.ErrorIs(t, svc.DeleteElement(ctx, invID, current[0].ID), apperr.ErrNotFound)
}
