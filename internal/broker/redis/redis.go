// Package redis implements the broker contracts on a Redis instance: a list
// for the FIFO, a hash for job state, a SET NX key for the worker lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brstats/statshub/internal/broker"
)

const (
	queueKey = "scrape:queue"
	jobsKey  = "scrape:jobs"
	lockKey  = "scrape:worker:lock"
)

// Queue is the Redis-backed FIFO. Producers LPUSH, the worker BRPOPs, so ids
// come out in arrival order.
type Queue struct {
	rdb *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func (q *Queue) Push(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, queueKey, jobID).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("queue pop: %w", err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("queue pop: unexpected reply %v", res)
	}
	return res[1], nil
}

func (q *Queue) Pending(ctx context.Context) ([]string, error) {
	ids, err := q.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue pending: %w", err)
	}
	// LPUSH prepends, so the list is newest-first; reverse to FIFO order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// JobStore serializes jobs as JSON fields of one hash.
type JobStore struct {
	rdb *redis.Client
}

func NewJobStore(rdb *redis.Client) *JobStore {
	return &JobStore{rdb: rdb}
}

func (s *JobStore) Put(ctx context.Context, job *broker.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.HSet(ctx, jobsKey, job.ID, raw).Err(); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*broker.Job, error) {
	raw, err := s.rdb.HGet(ctx, jobsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, broker.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	var job broker.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context) ([]*broker.Job, error) {
	entries, err := s.rdb.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*broker.Job, 0, len(entries))
	for id, raw := range entries {
		var job broker.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", id, err)
		}
		out = append(out, &job)
	}
	sortJobs(out)
	return out, nil
}

func (s *JobStore) DeleteTerminal(ctx context.Context) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, job := range jobs {
		if job.Status.Terminal() {
			ids = append(ids, job.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.rdb.HDel(ctx, jobsKey, ids...).Err(); err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return len(ids), nil
}

func sortJobs(jobs []*broker.Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].EnqueuedAt.Before(jobs[j-1].EnqueuedAt); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

var (
	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)
)

// Lock is the SET NX worker lock. The token ties refresh and release to the
// instance that acquired it, so a stale holder cannot clobber a newer one.
type Lock struct {
	rdb   *redis.Client
	token string
	ttl   time.Duration
}

func NewLock(rdb *redis.Client, token string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{rdb: rdb, token: token, ttl: ttl}
}

func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.rdb, []string{lockKey}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh lock: %w", err)
	}
	if n == 0 {
		return broker.ErrLockHeld
	}
	return nil
}

func (l *Lock) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.rdb, []string{lockKey}, l.token).Result(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
