package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// dialect captures what differs between the supported databases.
type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	schema      []string
	// txOptions for InSerializableTx. SQLite transactions are already
	// serializable, and the driver rejects explicit isolation levels.
	txOptions *sql.TxOptions
	// isConflict reports a serialization failure worth retrying.
	isConflict func(error) bool
	// isUniqueViolation reports a unique or primary-key constraint failure.
	isUniqueViolation func(error) bool
}
