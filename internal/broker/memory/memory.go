// Package memory provides in-process broker implementations used by tests
// and single-binary development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brstats/statshub/internal/broker"
)

// Queue is an in-memory FIFO of job ids.
type Queue struct {
	mu   sync.Mutex
	ids  []string
	wake chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

func (q *Queue) Push(_ context.Context, jobID string) error {
	q.mu.Lock()
	q.ids = append(q.ids, jobID)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		q.mu.Lock()
		if len(q.ids) > 0 {
			id := q.ids[0]
			q.ids = q.ids[1:]
			q.mu.Unlock()
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", nil
		case <-q.wake:
		}
	}
}

func (q *Queue) Pending(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...), nil
}

// JobStore keeps jobs in a map, copying on the way in and out.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]broker.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]broker.Job)}
}

func (s *JobStore) Put(_ context.Context, job *broker.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*broker.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, broker.ErrJobNotFound
	}
	return &job, nil
}

func (s *JobStore) List(_ context.Context) ([]*broker.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*broker.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		j := job
		out = append(out, &j)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

func (s *JobStore) DeleteTerminal(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// LockState is the shared side of the in-memory worker lock. Each worker gets
// its own handle so ownership is tracked per instance.
type LockState struct {
	mu     sync.Mutex
	holder *Lock
}

func NewLockState() *LockState {
	return &LockState{}
}

// NewHandle returns one worker's view of the lock.
func (s *LockState) NewHandle() *Lock {
	return &Lock{state: s}
}

// Lock is a single worker's handle on the shared lock.
type Lock struct {
	state *LockState
}

func (l *Lock) Acquire(_ context.Context) (bool, error) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	if l.state.holder == nil || l.state.holder == l {
		l.state.holder = l
		return true, nil
	}
	return false, nil
}

func (l *Lock) Refresh(_ context.Context) error {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	if l.state.holder != l {
		return broker.ErrLockHeld
	}
	return nil
}

func (l *Lock) Release(_ context.Context) error {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	if l.state.holder == l {
		l.state.holder = nil
	}
	return nil
}
