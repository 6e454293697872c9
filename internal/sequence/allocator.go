// Package sequence allocates per-inventory sequence numbers for custom IDs.
//
// The production allocator advances a counter row inside a serializable
// transaction and retries the whole transaction on serialization conflicts.
// MaxScanAllocator derives the next value from existing items instead; it is
// kept for deployments migrating from older data and is weaker under
// concurrency.
package sequence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// DefaultMaxAttempts is the number of transactions tried before giving up.
const DefaultMaxAttempts = 3

// Source hands out sequence numbers for one inventory at a time.
type Source interface {
	// AllocateNext returns the next value and advances the counter.
	AllocateNext(ctx context.Context, inventoryID uuid.UUID) (int64, error)
	// Current returns the value AllocateNext would return, without advancing.
	Current(ctx context.Context, inventoryID uuid.UUID) (int64, error)
	// AdvancePast makes sure used is never handed out, for numbers taken by
	// IDs that were supplied instead of generated.
	AdvancePast(ctx context.Context, inventoryID uuid.UUID, used int64) error
}

// Allocator is the transactional counter allocator.
type Allocator struct {
	store       store.SequenceStore
	maxAttempts int
	retry       apperr.RetryConfig
}

// Verify interface implementation at compile time
var _ Source = (*Allocator)(nil)

// Option configures an Allocator.
type Option func(*Allocator)

// WithRetryConfig overrides the backoff between attempts.
// MaxRetries is derived from the attempt count and is ignored.
func WithRetryConfig(cfg apperr.RetryConfig) Option {
	return func(a *Allocator) {
		a.retry.InitialDelay = cfg.InitialDelay
		a.retry.MaxDelay = cfg.MaxDelay
		a.retry.Multiplier = cfg.Multiplier
		a.retry.Jitter = cfg.Jitter
	}
}

// NewAllocator creates a transactional allocator. maxAttempts below 1 uses
// DefaultMaxAttempts.
func NewAllocator(s store.SequenceStore, maxAttempts int, opts ...Option) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	a := &Allocator{
		store:       s,
		maxAttempts: maxAttempts,
		retry:       apperr.TransactionRetryConfig(maxAttempts),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AllocateNext reads the counter, persists value+1 and returns the read value,
// all in one serializable transaction. A serialization conflict rolls the
// transaction back and starts a fresh one. Exhausting every attempt returns
// ErrSequenceConflict; a missing counter returns ErrSequenceNotConfigured
// without retrying.
func (a *Allocator) AllocateNext(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	var value int64
	err := a.transact(ctx, inventoryID, func(tx store.SequenceTx, next int64) error {
		if err := tx.WriteSequence(ctx, inventoryID, next+1); err != nil {
			return err
		}
		value = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// AdvancePast raises the counter to used+1 unless it is already beyond
// used. It retries like AllocateNext.
func (a *Allocator) AdvancePast(ctx context.Context, inventoryID uuid.UUID, used int64) error {
	return a.transact(ctx, inventoryID, func(tx store.SequenceTx, next int64) error {
		if next > used {
			return nil
		}
		slog.Debug("sequence_advanced",
			slog.String("inventory_id", inventoryID.String()),
			slog.Int64("from", next),
			slog.Int64("to", used+1))
		return tx.WriteSequence(ctx, inventoryID, used+1)
	})
}

// transact runs fn against the current counter value in a serializable
// transaction, retrying conflicts up to maxAttempts.
func (a *Allocator) transact(ctx context.Context, inventoryID uuid.UUID, fn func(tx store.SequenceTx, next int64) error) error {
	attempt := 0
	err := apperr.Retry(ctx, a.retry, func() error {
		attempt++
		err := a.store.InSerializableTx(ctx, func(tx store.SequenceTx) error {
			next, ok, err := tx.ReadSequence(ctx, inventoryID)
			if err != nil {
				return err
			}
			if !ok {
				return notConfigured(inventoryID)
			}
			return fn(tx, next)
		})
		if err != nil && apperr.IsRetryable(err) {
			slog.Debug("sequence_conflict_retry",
				slog.String("inventory_id", inventoryID.String()),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", a.maxAttempts))
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if apperr.IsRetryable(err) {
		slog.Warn("sequence_conflict_exhausted",
			slog.String("inventory_id", inventoryID.String()),
			slog.Int("attempts", attempt))
		return apperr.New(apperr.ErrCodeSequenceConflict,
			fmt.Sprintf("sequence allocation for inventory %s conflicted %d times", inventoryID, attempt), err).
			WithDetail("inventory_id", inventoryID.String()).
			WithSuggestion("Retry the request; sustained conflicts indicate heavy concurrent item creation")
	}
	return err
}

// Current returns the next value without advancing the counter.
func (a *Allocator) Current(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	return a.store.CurrentSequence(ctx, inventoryID)
}

func notConfigured(inventoryID uuid.UUID) error {
	return apperr.New(apperr.ErrCodeSequenceNotConfigured,
		fmt.Sprintf("inventory %s has a sequence element but no counter", inventoryID), nil).
		WithDetail("inventory_id", inventoryID.String()).
		WithSuggestion("Re-add the Sequence element to recreate the counter")
}
