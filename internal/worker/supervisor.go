package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/broker"
	"github.com/brstats/statshub/internal/metrics"
	"github.com/brstats/statshub/internal/notify"
)

// SupervisorConfig tunes job processing.
type SupervisorConfig struct {
	PopTimeout    time.Duration
	LockRefresh   time.Duration
	JobMaxRetries int
	JobBackoff    time.Duration
	MaxRecoveries int
}

func (c *SupervisorConfig) applyDefaults() {
	if c.PopTimeout <= 0 {
		c.PopTimeout = 5 * time.Second
	}
	if c.LockRefresh <= 0 {
		c.LockRefresh = 10 * time.Second
	}
	if c.JobMaxRetries <= 0 {
		c.JobMaxRetries = 3
	}
	if c.JobBackoff <= 0 {
		c.JobBackoff = 5 * time.Second
	}
	if c.MaxRecoveries <= 0 {
		c.MaxRecoveries = 3
	}
}

// Supervisor owns the worker side of the broker: it holds the processing
// lock, replays jobs orphaned by a crash, and feeds popped jobs through the
// pipeline one at a time.
type Supervisor struct {
	queue    broker.Queue
	jobs     broker.JobStore
	lock     broker.Lock
	pipeline Pipeline
	notifier notify.Notifier
	clock    broker.Clock
	cfg      SupervisorConfig
	logger   *zap.Logger
}

func NewSupervisor(
	queue broker.Queue,
	jobs broker.JobStore,
	lock broker.Lock,
	pipeline Pipeline,
	notifier notify.Notifier,
	clock broker.Clock,
	cfg SupervisorConfig,
	logger *zap.Logger,
) *Supervisor {
	cfg.applyDefaults()
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Supervisor{
		queue:    queue,
		jobs:     jobs,
		lock:     lock,
		pipeline: pipeline,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks until the context ends. If another instance holds the lock the
// supervisor stays idle, retrying acquisition, so spare replicas are warm
// standbys rather than competing consumers.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx); err != nil {
			s.logger.Warn("lock release failed", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.refreshLock(runCtx, cancel)

	if err := s.recoverOrphans(runCtx); err != nil {
		s.logger.Error("crash recovery scan failed", zap.Error(err))
	}

	for {
		if runCtx.Err() != nil {
			return runCtx.Err()
		}
		id, err := s.queue.Pop(runCtx, s.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Error("queue pop failed", zap.Error(err))
			continue
		}
		if id == "" {
			s.observeQueueDepth(runCtx)
			continue
		}
		s.process(runCtx, id)
	}
}

func (s *Supervisor) acquireLock(ctx context.Context) error {
	for {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			s.logger.Info("worker lock acquired")
			return nil
		}
		s.logger.Info("worker lock held elsewhere, standing by")
		timer := time.NewTimer(s.cfg.LockRefresh)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refreshLock keeps the TTL alive. Losing the lock cancels the run so two
// instances never process concurrently.
func (s *Supervisor) refreshLock(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(s.cfg.LockRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.lock.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("worker lock lost, stopping", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

// recoverOrphans re-enqueues jobs a previous instance left behind: anything
// active whose id is no longer in the live queue. A job that keeps needing
// recovery is crashing the worker and gets permanently failed instead of
// looping forever.
func (s *Supervisor) recoverOrphans(ctx context.Context) error {
	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return err
	}
	inQueue := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		inQueue[id] = struct{}{}
	}

	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if !job.Active() {
			continue
		}
		if _, queued := inQueue[job.ID]; queued {
			continue
		}
		job.RecoveryCount++
		if job.RecoveryCount > s.cfg.MaxRecoveries {
			s.logger.Error("job exceeded recovery budget, failing permanently",
				zap.String("job_id", job.ID),
				zap.Int("recovery_count", job.RecoveryCount),
			)
			job.Status = broker.StatusFailed
			job.LastError = "job repeatedly interrupted processing, suspected poison job"
			now := s.clock.Now()
			job.CompletedAt = &now
			if err := s.jobs.Put(ctx, job); err != nil {
				return err
			}
			s.finish(ctx, job)
			continue
		}
		s.logger.Warn("re-enqueueing orphaned job",
			zap.String("job_id", job.ID),
			zap.Int("recovery_count", job.RecoveryCount),
		)
		job.Status = broker.StatusQueued
		job.ProcessingStartedAt = nil
		if err := s.jobs.Put(ctx, job); err != nil {
			return err
		}
		if err := s.queue.Push(ctx, job.ID); err != nil {
			return err
		}
		metrics.ObserveJobRecovered()
	}
	return nil
}

func (s *Supervisor) process(ctx context.Context, id string) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		s.logger.Error("popped unknown job", zap.String("job_id", id), zap.Error(err))
		return
	}
	if job.Status == broker.StatusCancelled {
		s.logger.Info("skipping cancelled job", zap.String("job_id", id))
		return
	}

	now := s.clock.Now()
	job.Status = broker.StatusProcessing
	job.ProcessingStartedAt = &now
	if err := s.jobs.Put(ctx, job); err != nil {
		s.logger.Error("job state update failed", zap.String("job_id", id), zap.Error(err))
		return
	}

	logger := s.logger.With(
		zap.String("job_id", job.ID),
		zap.String("league", job.League),
		zap.Int("year", job.Year),
		zap.Int("round", job.Round),
	)
	logger.Info("job started")

	for {
		scraped, total, err := s.runOnce(ctx, job)
		job.MatchesScraped = scraped
		job.TotalMatches = total

		if err == nil {
			job.Status = broker.StatusCompleted
			job.LastError = ""
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// shutdown mid-job: leave it processing for the next
			// instance's recovery scan
			logger.Warn("job interrupted by shutdown")
			_ = s.jobs.Put(ctx, job)
			return
		}

		job.RetryCount++
		job.LastError = err.Error()
		if job.RetryCount >= s.cfg.JobMaxRetries {
			logger.Error("job failed permanently", zap.Error(err), zap.Int("retries", job.RetryCount))
			job.Status = broker.StatusFailed
			break
		}
		logger.Warn("job attempt failed, backing off",
			zap.Error(err),
			zap.Int("retry_count", job.RetryCount),
		)
		_ = s.jobs.Put(ctx, job)

		timer := time.NewTimer(s.cfg.JobBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// cancellation between attempts is honored
		if fresh, err := s.jobs.Get(ctx, job.ID); err == nil && fresh.Status == broker.StatusCancelled {
			logger.Info("job cancelled between attempts")
			return
		}
	}

	done := s.clock.Now()
	job.CompletedAt = &done
	if err := s.jobs.Put(ctx, job); err != nil {
		logger.Error("final job state update failed", zap.Error(err))
	}
	logger.Info("job finished",
		zap.String("status", string(job.Status)),
		zap.Int("matches_scraped", job.MatchesScraped),
		zap.Int("total_matches", job.TotalMatches),
	)
	s.finish(ctx, job)
}

func (s *Supervisor) runOnce(ctx context.Context, job *broker.Job) (int, int, error) {
	progress := func(scraped, total int) {
		job.MatchesScraped = scraped
		job.TotalMatches = total
		_ = s.jobs.Put(ctx, job)
	}
	return s.pipeline.Run(ctx, job, progress)
}

// finish records terminal-state metrics and fans the event out.
func (s *Supervisor) finish(ctx context.Context, job *broker.Job) {
	metrics.ObserveJob(string(job.Status))
	event := notify.JobEvent{
		JobID:          job.ID,
		League:         job.League,
		Year:           job.Year,
		Round:          job.Round,
		Status:         string(job.Status),
		MatchesScraped: job.MatchesScraped,
		TotalMatches:   job.TotalMatches,
		FinishedAt:     s.clock.Now(),
		Error:          job.LastError,
	}
	if err := s.notifier.JobFinished(ctx, event); err != nil {
		s.logger.Warn("job event publish failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Supervisor) observeQueueDepth(ctx context.Context) {
	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return
	}
	metrics.SetQueueDepth(len(pending))
}
