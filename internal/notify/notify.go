// Package notify publishes job lifecycle events for downstream consumers.
package notify

import (
	"context"
	"time"
)

// JobEvent is the payload published when a job reaches a terminal state.
type JobEvent struct {
	JobID          string    `json:"job_id"`
	League         string    `json:"league"`
	Year           int       `json:"year"`
	Round          int       `json:"round"`
	Status         string    `json:"status"`
	MatchesScraped int       `json:"matches_scraped"`
	TotalMatches   int       `json:"total_matches"`
	FinishedAt     time.Time `json:"finished_at"`
	Error          string    `json:"error,omitempty"`
}

// Notifier delivers job events. Implementations must be safe to call from
// the worker goroutine.
type Notifier interface {
	JobFinished(ctx context.Context, event JobEvent) error
}

// Nop discards events, used when no topic is configured.
type Nop struct{}

func (Nop) JobFinished(context.Context, JobEvent) error { return nil }
