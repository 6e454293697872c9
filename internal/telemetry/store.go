package telemetry

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Aman-CERP/invsearch/internal/store"
)

// MaxZeroResultRows bounds the persisted zero-result buffer.
const MaxZeroResultRows = 100

// Database is the part of the system of record telemetry lives in.
type Database interface {
	Backend() string
	DB() store.DBTX
	Builder() sq.StatementBuilderType
}

// SQLMetricsStore implements QueryMetricsStore in the system-of-record
// database, sharing its connection.
type SQLMetricsStore struct {
	db store.DBTX
	sb sq.StatementBuilderType
}

// NewSQLMetricsStore creates the telemetry tables if needed and returns the
// store.
func NewSQLMetricsStore(ctx context.Context, d Database) (*SQLMetricsStore, error) {
	if d == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := initSchema(ctx, d.DB(), d.Backend()); err != nil {
		return nil, err
	}
	return &SQLMetricsStore{db: d.DB(), sb: d.Builder()}, nil
}

func initSchema(ctx context.Context, db store.DBTX, backend string) error {
	zeroID := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if backend == store.BackendPostgres {
		zeroID = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		// Query path frequency, aggregated daily
		`CREATE TABLE IF NOT EXISTS query_path_stats (
			day  TEXT NOT NULL,
			path TEXT NOT NULL,
			hits BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (day, path)
		)`,
		`CREATE TABLE IF NOT EXISTS query_terms (
			term      TEXT PRIMARY KEY,
			hits      BIGINT NOT NULL DEFAULT 0,
			last_seen TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_terms_hits ON query_terms(hits DESC)`,
		`CREATE TABLE IF NOT EXISTS zero_result_queries (
			` + zeroID + `,
			query       TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		// Latency histogram, aggregated daily
		`CREATE TABLE IF NOT EXISTS query_latency_stats (
			day    TEXT NOT NULL,
			bucket TEXT NOT NULL,
			hits   BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (day, bucket)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create telemetry schema: %w", err)
		}
	}
	return nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func (s *SQLMetricsStore) exec(ctx context.Context, b sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// SavePathCounts adds daily query path counts.
func (s *SQLMetricsStore) SavePathCounts(ctx context.Context, day string, counts map[QueryPath]int64) error {
	for path, n := range counts {
		err := s.exec(ctx, s.sb.Insert("query_path_stats").
			Columns("day", "path", "hits").
			Values(day, string(path), n).
			Suffix("ON CONFLICT (day, path) DO UPDATE SET hits = query_path_stats.hits + excluded.hits"))
		if err != nil {
			return fmt.Errorf("upsert query path count: %w", err)
		}
	}
	return nil
}

// GetPathCounts sums path counts over an inclusive day range.
func (s *SQLMetricsStore) GetPathCounts(ctx context.Context, from, to string) (map[QueryPath]int64, error) {
	counts := make(map[QueryPath]int64)
	err := s.sumByKey(ctx, "query_path_stats", "path", from, to, func(key string, n int64) {
		counts[QueryPath(key)] = n
	})
	return counts, err
}

// UpsertTermCounts adds term frequency counts.
func (s *SQLMetricsStore) UpsertTermCounts(ctx context.Context, terms map[string]int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for term, n := range terms {
		err := s.exec(ctx, s.sb.Insert("query_terms").
			Columns("term", "hits", "last_seen").
			Values(term, n, now).
			Suffix("ON CONFLICT (term) DO UPDATE SET hits = query_terms.hits + excluded.hits, last_seen = excluded.last_seen"))
		if err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}
	return nil
}

// GetTopTerms retrieves the top terms by frequency.
func (s *SQLMetricsStore) GetTopTerms(ctx context.Context, limit int) ([]TermCount, error) {
	query, args, err := s.sb.Select("term", "hits").
		From("query_terms").
		OrderBy("hits DESC", "term").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQueries appends to the zero-result buffer and trims it to
// the newest MaxZeroResultRows entries.
func (s *SQLMetricsStore) AddZeroResultQueries(ctx context.Context, queries []ZeroResult) error {
	if len(queries) == 0 {
		return nil
	}
	insert := s.sb.Insert("zero_result_queries").Columns("query", "recorded_at")
	for _, q := range queries {
		insert = insert.Values(q.Query, q.At.UTC().Format(time.RFC3339Nano))
	}
	if err := s.exec(ctx, insert); err != nil {
		return fmt.Errorf("insert zero-result queries: %w", err)
	}

	err := s.exec(ctx, s.sb.Delete("zero_result_queries").
		Where("id NOT IN (SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?)", MaxZeroResultRows))
	if err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries retrieves recent zero-result queries, newest first.
func (s *SQLMetricsStore) GetZeroResultQueries(ctx context.Context, limit int) ([]string, error) {
	query, args, err := s.sb.Select("query").
		From("zero_result_queries").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts adds daily latency histogram counts.
func (s *SQLMetricsStore) SaveLatencyCounts(ctx context.Context, day string, counts map[LatencyBucket]int64) error {
	for bucket, n := range counts {
		err := s.exec(ctx, s.sb.Insert("query_latency_stats").
			Columns("day", "bucket", "hits").
			Values(day, string(bucket), n).
			Suffix("ON CONFLICT (day, bucket) DO UPDATE SET hits = query_latency_stats.hits + excluded.hits"))
		if err != nil {
			return fmt.Errorf("upsert latency count: %w", err)
		}
	}
	return nil
}

// GetLatencyCounts sums the latency distribution over an inclusive day range.
func (s *SQLMetricsStore) GetLatencyCounts(ctx context.Context, from, to string) (map[LatencyBucket]int64, error) {
	counts := make(map[LatencyBucket]int64)
	err := s.sumByKey(ctx, "query_latency_stats", "bucket", from, to, func(key string, n int64) {
		counts[LatencyBucket(key)] = n
	})
	return counts, err
}

func (s *SQLMetricsStore) sumByKey(ctx context.Context, table, key, from, to string, fn func(string, int64)) error {
	query, args, err := s.sb.Select(key, "CAST(SUM(hits) AS BIGINT)").
		From(table).
		Where(sq.And{sq.GtOrEq{"day": from}, sq.LtOrEq{"day": to}}).
		GroupBy(key).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		fn(k, n)
	}
	return rows.Err()
}
