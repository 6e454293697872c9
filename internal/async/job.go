package async

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LockFileName marks a job in progress. A marker left behind by a crash
// tells the next start that the index may be half written.
const LockFileName = "reconcile.lock"

// JobFunc is the work run by a Job.
type JobFunc func(ctx context.Context, progress *Progress) error

// Job runs a JobFunc once in a background goroutine.
type Job struct {
	dataDir  string
	fn       JobFunc
	progress *Progress

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewJob creates a job whose lock marker lives in dataDir.
func NewJob(dataDir string, fn JobFunc) *Job {
	return &Job{
		dataDir:  dataDir,
		fn:       fn,
		progress: NewProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the job's progress tracker.
func (j *Job) Progress() *Progress {
	return j.progress
}

// IsRunning reports whether the job goroutine is active.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Start launches the job. Calling it again has no effect.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return
	}
	j.started = true
	j.running = true
	j.mu.Unlock()

	go j.run(ctx)
}

func (j *Job) run(ctx context.Context) {
	defer close(j.doneCh)
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-j.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	lockPath := filepath.Join(j.dataDir, LockFileName)
	if err := os.MkdirAll(j.dataDir, 0o755); err != nil {
		j.fail(err)
		return
	}
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		j.fail(err)
		return
	}

	start := time.Now()
	if err := j.fn(ctx, j.progress); err != nil {
		// The marker stays so the next start reconciles again.
		j.fail(err)
		return
	}
	_ = os.Remove(lockPath)

	j.progress.SetReady()
	snap := j.progress.Snapshot()
	slog.Info("index_reconcile_complete",
		slog.Int("indexed", snap.Indexed),
		slog.Int("repaired", snap.Repaired),
		slog.Duration("duration", time.Since(start)))
}

func (j *Job) fail(err error) {
	slog.Error("index_reconcile_failed", slog.String("error", err.Error()))
	j.progress.SetError(err.Error())
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// Stop cancels a running job and waits for it to return.
func (j *Job) Stop() {
	j.mu.Lock()
	started := j.started
	j.mu.Unlock()
	if !started {
		return
	}
	j.stopOnce.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// Wait blocks until the job finishes and returns its error.
func (j *Job) Wait() error {
	<-j.doneCh
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// HasIncompleteLock reports whether a previous job in dataDir did not
// finish.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, LockFileName))
	return err == nil
}
