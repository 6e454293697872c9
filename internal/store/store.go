// Package store is the system of record for inventories, items, custom
// fields, custom-ID templates and sequence counters.
//
// The search index is a projection of this data and can always be rebuilt
// from it. One database/sql implementation serves both SQLite (default) and
// PostgreSQL; the differences live in a dialect.
package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader is the read side consumed by indexing and search.
type Reader interface {
	GetInventory(ctx context.Context, id uuid.UUID) (*Inventory, error)
	ListInventories(ctx context.Context) ([]*Inventory, error)
	// InventoryTitles resolves titles in one round trip. Unknown ids are absent.
	InventoryTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	ListItemIDs(ctx context.Context, inventoryID uuid.UUID) ([]uuid.UUID, error)

	ListFields(ctx context.Context, inventoryID uuid.UUID) ([]*CustomField, error)
	// ListElements returns the template ordered by position.
	ListElements(ctx context.Context, inventoryID uuid.UUID) ([]*Element, error)
}

// Writer holds the mutations performed by catalog and template management.
type Writer interface {
	CreateInventory(ctx context.Context, inv *Inventory) error
	UpdateInventory(ctx context.Context, inv *Inventory) error
	DeleteInventory(ctx context.Context, id uuid.UUID) error

	CreateField(ctx context.Context, f *CustomField) error

	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// AddElement assigns el.ID, and el.Position when zero. Adding a Sequence
	// element creates the inventory's counter if missing.
	AddElement(ctx context.Context, el *Element) error
	UpdateElement(ctx context.Context, el *Element) error
	DeleteElement(ctx context.Context, inventoryID uuid.UUID, elementID int64) error
	// ReorderElements assigns positions 1..n following ids, which must be a
	// permutation of the template's element ids.
	ReorderElements(ctx context.Context, inventoryID uuid.UUID, ids []int64) error

	// EnsureSequence creates the counter at 1 if it does not exist.
	EnsureSequence(ctx context.Context, inventoryID uuid.UUID) error
}

// SequenceTx is the view of a serializable transaction used by the
// sequence allocator.
type SequenceTx interface {
	// ReadSequence returns the next value and whether the counter exists.
	ReadSequence(ctx context.Context, inventoryID uuid.UUID) (int64, bool, error)
	WriteSequence(ctx context.Context, inventoryID uuid.UUID, next int64) error
}

// SequenceStore provides counter access.
type SequenceStore interface {
	// InSerializableTx runs fn in one serializable transaction and commits.
	// Any error rolls back. Serialization failures are reported as
	// errors.ErrSerializationConflict so callers can retry.
	InSerializableTx(ctx context.Context, fn func(tx SequenceTx) error) error
	// CurrentSequence reads the next value without advancing it.
	CurrentSequence(ctx context.Context, inventoryID uuid.UUID) (int64, error)
	// MaxSequenceNumber returns the highest sequence number used by items,
	// or 0 when none has one.
	MaxSequenceNumber(ctx context.Context, inventoryID uuid.UUID) (int64, error)
}

// Store is the complete system of record.
type Store interface {
	Reader
	Writer
	SequenceStore

	// Backend names the dialect ("sqlite" or "postgres").
	Backend() string
	// DB and Builder expose the handle for co-located tables such as
	// telemetry. Builder carries the dialect's placeholder format.
	DB() DBTX
	Builder() sq.StatementBuilderType
	Ping(ctx context.Context) error
	Close() error
}
