package telemetry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/invsearch/internal/store"
)

func setupTestStore(t *testing.T) *SQLMetricsStore {
	t.Helper()

	db, err := store.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLMetricsStore(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestSQLMetricsStore_PathCounts_Incremental(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SavePathCounts(ctx, "2026-01-06", map[QueryPath]int64{PathStandard: 10, PathFuzzy: 2}))
	require.NoError(t, s.SavePathCounts(ctx, "2026-01-06", map[QueryPath]int64{PathStandard: 5}))

	result, err := s.GetPathCounts(ctx, "2026-01-06", "2026-01-06")
	require.NoError(t, err)

	assert.Equal(t, int64(15), result[PathStandard])
	assert.Equal(t, int64(2), result[PathFuzzy])
}

func TestSQLMetricsStore_DateRange(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	for i, day := range []string{"2026-01-05", "2026-01-06", "2026-01-07"} {
		require.NoError(t, s.SavePathCounts(ctx, day, map[QueryPath]int64{PathFielded: int64(10 * (i + 1))}))
	}

	result, err := s.GetPathCounts(ctx, "2026-01-05", "2026-01-06")
	require.NoError(t, err)

	assert.Equal(t, int64(30), result[PathFielded]) // 10 + 20
}

func TestSQLMetricsStore_TopTerms(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.UpsertTermCounts(ctx, map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}))
	require.NoError(t, s.UpsertTermCounts(ctx, map[string]int64{"a": 10}))
	require.NoError(t, s.UpsertTermCounts(ctx, map[string]int64{}))

	result, err := s.GetTopTerms(ctx, 3)
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, TermCount{Term: "a", Count: 11}, result[0])
	assert.Equal(t, "e", result[1].Term)
	assert.Equal(t, "d", result[2].Term)
}

func TestSQLMetricsStore_ZeroResultQueries(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now()

	require.NoError(t, s.AddZeroResultQueries(ctx, []ZeroResult{{Query: "missing lamp", At: now}}))
	require.NoError(t, s.AddZeroResultQueries(ctx, []ZeroResult{{Query: "blue chair", At: now.Add(time.Minute)}}))
	require.NoError(t, s.AddZeroResultQueries(ctx, nil))

	result, err := s.GetZeroResultQueries(ctx, 10)
	require.NoError(t, err)

	// Most recent first
	assert.Equal(t, []string{"blue chair", "missing lamp"}, result)
}

func TestSQLMetricsStore_ZeroResultQueries_Trimmed(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	batch := make([]ZeroResult, 0, MaxZeroResultRows+5)
	for i := 0; i < MaxZeroResultRows+5; i++ {
		batch = append(batch, ZeroResult{Query: fmt.Sprintf("q%d", i), At: time.Now()})
	}
	require.NoError(t, s.AddZeroResultQueries(ctx, batch))

	result, err := s.GetZeroResultQueries(ctx, 500)
	require.NoError(t, err)

	assert.Len(t, result, MaxZeroResultRows)
	assert.Equal(t, fmt.Sprintf("q%d", MaxZeroResultRows+4), result[0])
}

func TestSQLMetricsStore_LatencyCounts(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SaveLatencyCounts(ctx, "2026-01-06", map[LatencyBucket]int64{BucketP10: 100, BucketP1000: 5}))
	require.NoError(t, s.SaveLatencyCounts(ctx, "2026-01-06", map[LatencyBucket]int64{BucketP10: 5}))

	result, err := s.GetLatencyCounts(ctx, "2026-01-06", "2026-01-06")
	require.NoError(t, err)

	assert.Equal(t, int64(105), result[BucketP10])
	assert.Equal(t, int64(5), result[BucketP1000])
}

func TestNewSQLMetricsStore_NilDatabase(t *testing.T) {
	_, err := NewSQLMetricsStore(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewSQLMetricsStore_SchemaIsIdempotent(t *testing.T) {
	db, err := store.OpenSQLite("")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLMetricsStore(context.Background(), db)
	require.NoError(t, err)
	_, err = NewSQLMetricsStore(context.Background(), db)
	assert.NoError(t, err)
}
