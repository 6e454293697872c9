package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_RunsInBackgroundAndBecomesReady(t *testing.T) {
	// Given: a job that blocks until released
	dir := t.TempDir()
	release := make(chan struct{})
	job := NewJob(dir, func(ctx context.Context, p *Progress) error {
		p.SetStage(StageRebuilding)
		<-release
		p.SetIndexed(7)
		return nil
	})

	// When: starting it
	job.Start(context.Background())

	// Then: Start returned while the job is still running
	assert.Eventually(t, job.IsRunning, time.Second, 5*time.Millisecond)
	assert.True(t, job.Progress().IsIndexing())
	assert.Eventually(t, func() bool { return HasIncompleteLock(dir) }, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, job.Wait())

	snap := job.Progress().Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, 7, snap.Indexed)
	assert.False(t, job.IsRunning())
	assert.False(t, HasIncompleteLock(dir), "marker removed after success")
}

func TestJob_FailureKeepsMarker(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	job := NewJob(dir, func(context.Context, *Progress) error { return boom })

	job.Start(context.Background())

	assert.ErrorIs(t, job.Wait(), boom)
	snap := job.Progress().Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "boom", snap.ErrorMessage)
	assert.True(t, HasIncompleteLock(dir))
}

func TestJob_StopCancelsContext(t *testing.T) {
	job := NewJob(t.TempDir(), func(ctx context.Context, _ *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	})
	job.Start(context.Background())

	job.Stop()

	assert.ErrorIs(t, job.Wait(), context.Canceled)
	assert.False(t, job.IsRunning())
}

func TestJob_StopBeforeStartIsNoop(t *testing.T) {
	job := NewJob(t.TempDir(), func(context.Context, *Progress) error { return nil })
	job.Stop()
	assert.False(t, job.IsRunning())
}

func TestJob_StartIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	job := NewJob(t.TempDir(), func(context.Context, *Progress) error {
		runs.Add(1)
		return nil
	})

	job.Start(context.Background())
	job.Start(context.Background())
	require.NoError(t, job.Wait())

	assert.Equal(t, int32(1), runs.Load())
}

func TestHasIncompleteLock(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasIncompleteLock(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), []byte("x"), 0o644))
	assert.True(t, HasIncompleteLock(dir))
}
