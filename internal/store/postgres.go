package store

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgreSQL SQLSTATE codes.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS inventories (
		id          UUID PRIMARY KEY,
		owner_id    TEXT NOT NULL DEFAULT '',
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		image_url   TEXT NOT NULL DEFAULT '',
		is_public   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS custom_fields (
		id           BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		inventory_id UUID NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		field_type   TEXT NOT NULL,
		position     INTEGER NOT NULL DEFAULT 0,
		is_required  BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (inventory_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id              UUID PRIMARY KEY,
		inventory_id    UUID NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		custom_id       TEXT NOT NULL,
		sequence_number BIGINT,
		created_by      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (inventory_id, custom_id)
	)`,
	`CREATE TABLE IF NOT EXISTS item_field_values (
		item_id      UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		field_id     BIGINT NOT NULL REFERENCES custom_fields(id) ON DELETE CASCADE,
		text_value   TEXT,
		number_value NUMERIC,
		bool_value   BOOLEAN,
		PRIMARY KEY (item_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_id_elements (
		id           BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		inventory_id UUID NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		kind         TEXT NOT NULL,
		text         TEXT NOT NULL DEFAULT '',
		format       TEXT NOT NULL DEFAULT '',
		UNIQUE (inventory_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_sequences (
		inventory_id UUID PRIMARY KEY REFERENCES inventories(id) ON DELETE CASCADE,
		next_value   BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_inventory ON items(inventory_id)`,
	`INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING`,
}

func postgresDialect() dialect {
	return dialect{
		name:        BackendPostgres,
		placeholder: sq.Dollar,
		schema:      postgresSchema,
		txOptions:   &sql.TxOptions{Isolation: sql.LevelSerializable},
		isConflict: func(err error) bool {
			code := pgCode(err)
			return code == pgSerializationFailure || code == pgDeadlockDetected
		},
		isUniqueViolation: func(err error) bool {
			return pgCode(err) == pgUniqueViolation
		},
	}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// OpenPostgres connects to PostgreSQL through pgx's database/sql driver.
func OpenPostgres(dsn string, maxOpenConns int) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return newSQLStore(db, postgresDialect())
}
