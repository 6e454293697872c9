package sequence

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Aman-CERP/invsearch/internal/store"
)

// Strategy names accepted by New.
const (
	StrategyCounter = "counter"
	StrategyMaxScan = "max_scan"
)

// MaxScanAllocator returns max(item sequence number)+1. Two concurrent
// callers can observe the same maximum; the unique custom-ID constraint is
// the only guard, so prefer Allocator.
type MaxScanAllocator struct {
	store store.SequenceStore
}

// Verify interface implementation at compile time
var _ Source = (*MaxScanAllocator)(nil)

// NewMaxScanAllocator creates a max-scan allocator.
func NewMaxScanAllocator(s store.SequenceStore) *MaxScanAllocator {
	return &MaxScanAllocator{store: s}
}

// AllocateNext returns one past the highest sequence number in use.
func (m *MaxScanAllocator) AllocateNext(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	return m.Current(ctx, inventoryID)
}

// Current is identical to AllocateNext: nothing is reserved.
func (m *MaxScanAllocator) Current(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	maxUsed, err := m.store.MaxSequenceNumber(ctx, inventoryID)
	if err != nil {
		return 0, err
	}
	return maxUsed + 1, nil
}

// AdvancePast does nothing: the item carrying used already raises the
// maximum.
func (m *MaxScanAllocator) AdvancePast(context.Context, uuid.UUID, int64) error {
	return nil
}

// New returns the allocator for strategy. Unknown strategies fall back to
// the counter allocator.
func New(strategy string, s store.SequenceStore, maxAttempts int) Source {
	if strategy == StrategyMaxScan {
		slog.Warn("sequence_max_scan_selected",
			slog.String("detail", "concurrent item creation may produce duplicate sequence numbers"))
		return NewMaxScanAllocator(s)
	}
	return NewAllocator(s, maxAttempts)
}
