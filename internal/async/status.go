// Package async runs index maintenance in the background while the HTTP
// server is already accepting requests.
package async

import (
	"sync"
	"time"
)

// Status is the overall state of a background index job.
type Status string

const (
	// StatusIndexing means the job is running. Search works but may miss
	// documents that have not been reconciled yet.
	StatusIndexing Status = "indexing"
	// StatusReady means the index agrees with the system of record.
	StatusReady Status = "ready"
	// StatusError means the job failed; the index may be stale.
	StatusError Status = "error"
)

// Stage is the step a job is currently executing.
type Stage string

const (
	// StageChecking compares document counts with the store.
	StageChecking Stage = "checking"
	// StageRepairing indexes missing entities and deletes orphans.
	StageRepairing Stage = "repairing"
	// StageRebuilding replaces the whole index from the store.
	StageRebuilding Stage = "rebuilding"
)

// Snapshot is an immutable copy of job progress.
type Snapshot struct {
	Status         string `json:"status"`
	Stage          string `json:"stage"`
	Indexed        int    `json:"indexed"`
	Repaired       int    `json:"repaired"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Progress is the thread-safe progress of one job.
type Progress struct {
	mu sync.RWMutex

	status       Status
	stage        Stage
	indexed      int
	repaired     int
	startTime    time.Time
	endTime      time.Time
	errorMessage string
}

// NewProgress creates a tracker in the indexing state.
func NewProgress() *Progress {
	return &Progress{
		status:    StatusIndexing,
		stage:     StageChecking,
		startTime: time.Now(),
	}
}

// SetStage records the current stage.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// SetIndexed records the number of documents written by a rebuild.
func (p *Progress) SetIndexed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexed = n
}

// SetRepaired records the number of documents fixed by a repair.
func (p *Progress) SetRepaired(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repaired = n
}

// SetError marks the job as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errorMessage = message
	p.endTime = time.Now()
}

// SetReady marks the job as complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
	p.endTime = time.Now()
}

// IsIndexing reports whether the job is still running.
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state. Elapsed time stops
// advancing once the job has finished.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	end := p.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return Snapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		Indexed:        p.indexed,
		Repaired:       p.repaired,
		ElapsedSeconds: int(end.Sub(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
