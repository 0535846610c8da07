// Package broker defines the job model and the queue, store and lock
// contracts the worker and API share. Implementations live in the memory and
// redis subpackages.
package broker

import (
	"context"
	"errors"
	"time"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the job will never run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one round-scrape request as it moves through the queue.
type Job struct {
	ID                  string     `json:"id"`
	League              string     `json:"league"`
	Year                int        `json:"year"`
	Round               int        `json:"round"`
	Status              Status     `json:"status"`
	EnqueuedAt          time.Time  `json:"enqueued_at"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	RetryCount          int        `json:"retry_count"`
	RecoveryCount       int        `json:"recovery_count"`
	MatchesScraped      int        `json:"matches_scraped"`
	TotalMatches        int        `json:"total_matches"`
	LastError           string     `json:"last_error,omitempty"`
}

// Active reports whether the job still occupies its (league, year, round)
// slot for duplicate detection.
func (j *Job) Active() bool {
	return !j.Status.Terminal()
}

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrLockHeld means another worker instance owns the processing lock.
	ErrLockHeld = errors.New("worker lock held elsewhere")
)

// Clock abstracts time so job timestamps are testable.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints new job ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Queue is the FIFO of job ids awaiting a worker.
type Queue interface {
	// Push appends a job id to the tail.
	Push(ctx context.Context, jobID string) error
	// Pop blocks up to timeout for the next id. It returns "" when the
	// timeout elapses with an empty queue.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	// Pending snapshots the queued ids in order.
	Pending(ctx context.Context) ([]string, error)
}

// JobStore holds job state keyed by id.
type JobStore interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context) ([]*Job, error)
	// DeleteTerminal removes completed, failed and cancelled jobs and
	// reports how many were removed.
	DeleteTerminal(ctx context.Context) (int, error)
}

// Lock is the single-worker processing lock. Acquire reports false when the
// lock is held by another instance; the holder must Refresh it within the
// lock TTL or lose it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}
