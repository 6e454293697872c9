package store

import (
	"fmt"
)

// Supported backends.
const (
	// BackendSQLite is the embedded default, pure Go via modernc.org/sqlite.
	BackendSQLite = "sqlite"
	// BackendPostgres uses pgx and true SERIALIZABLE isolation.
	BackendPostgres = "postgres"
)

// Options carries backend-specific tuning.
type Options struct {
	// MaxOpenConns applies to PostgreSQL only.
	MaxOpenConns int
}

// Open creates a Store for the named backend. An empty backend means SQLite.
func Open(backend, dsn string, opts Options) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(dsn)
	case BackendPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return OpenPostgres(dsn, opts.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: sqlite, postgres)", backend)
	}
}
