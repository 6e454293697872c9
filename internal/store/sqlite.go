package store

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS inventories (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL DEFAULT '',
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		image_url   TEXT NOT NULL DEFAULT '',
		is_public   INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS custom_fields (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		inventory_id TEXT NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		field_type   TEXT NOT NULL,
		position     INTEGER NOT NULL DEFAULT 0,
		is_required  INTEGER NOT NULL DEFAULT 0,
		UNIQUE (inventory_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id              TEXT PRIMARY KEY,
		inventory_id    TEXT NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		custom_id       TEXT NOT NULL,
		sequence_number INTEGER,
		created_by      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (inventory_id, custom_id)
	)`,
	`CREATE TABLE IF NOT EXISTS item_field_values (
		item_id      TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		field_id     INTEGER NOT NULL REFERENCES custom_fields(id) ON DELETE CASCADE,
		text_value   TEXT,
		number_value TEXT,
		bool_value   INTEGER,
		PRIMARY KEY (item_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_id_elements (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		inventory_id TEXT NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		kind         TEXT NOT NULL,
		text         TEXT NOT NULL DEFAULT '',
		format       TEXT NOT NULL DEFAULT '',
		UNIQUE (inventory_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_sequences (
		inventory_id TEXT PRIMARY KEY REFERENCES inventories(id) ON DELETE CASCADE,
		next_value   INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_inventory ON items(inventory_id)`,
	`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`,
}

func sqliteDialect() dialect {
	return dialect{
		name:              BackendSQLite,
		placeholder:       sq.Question,
		schema:            sqliteSchema,
		isConflict:        isSQLiteBusy,
		isUniqueViolation: isSQLiteUnique,
	}
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if stderrors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	code, ok := sqliteCode(err)
	// Extended result codes carry the primary code in the low byte.
	primary := code & 0xff
	return ok && (primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED)
}

func isSQLiteUnique(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "UNIQUE")
	}
	return false
}

// validateSQLiteIntegrity checks an existing database file before opening.
// Returns nil if the file is absent or healthy.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// OpenSQLite opens (creating if needed) a SQLite system of record.
// If path is empty or ":memory:", an in-memory database is used.
//
// Unlike the search index, a corrupt database is never auto-cleared: it is
// the source of truth, so the error is returned for an operator to handle.
func OpenSQLite(path string) (*SQLStore, error) {
	var dsn string
	if path == "" || path == ":memory:" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := validateSQLiteIntegrity(path); err != nil {
			slog.Error("sqlite_store_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("database at %s failed integrity check: %w", path, err)
		}
		// Take the write lock at BEGIN so concurrent processes wait on
		// busy_timeout instead of failing a read-to-write upgrade.
		dsn = path + "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if dsn != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return newSQLStore(db, sqliteDialect())
}
