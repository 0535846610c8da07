package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brstats/statshub/internal/broker"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewQueue()

	require.NoError(t, q.Push(ctx, "a"))
	require.NoError(t, q.Push(ctx, "b"))

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, pending)

	id, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "a", id)
	id, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "b", id)
}

func TestQueue_PopTimesOutEmpty(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	id, err := q.Pop(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "", id)
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewQueue()

	got := make(chan string, 1)
	go func() {
		id, _ := q.Pop(ctx, 5*time.Second)
		got <- id
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(ctx, "late"))

	select {
	case id := <-got:
		require.Equal(t, "late", id)
	case <-time.After(2 * time.Second):
		t.Fatal("pop never woke up")
	}
}

func TestJobStore_RoundTripAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, broker.ErrJobNotFound)

	now := time.Now().UTC()
	done := &broker.Job{ID: "done", Status: broker.StatusCompleted, EnqueuedAt: now}
	live := &broker.Job{ID: "live", Status: broker.StatusProcessing, EnqueuedAt: now.Add(time.Second)}
	require.NoError(t, store.Put(ctx, done))
	require.NoError(t, store.Put(ctx, live))

	got, err := store.Get(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, broker.StatusProcessing, got.Status)

	// mutating the returned copy must not touch stored state
	got.Status = broker.StatusFailed
	again, err := store.Get(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, broker.StatusProcessing, again.Status)

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "done", jobs[0].ID)

	removed, err := store.DeleteTerminal(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = store.Get(ctx, "done")
	require.ErrorIs(t, err, broker.ErrJobNotFound)
}

func TestLock_SingleHolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	state := NewLockState()
	first := state.NewHandle()
	second := state.NewHandle()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, first.Refresh(ctx))
	require.ErrorIs(t, second.Refresh(ctx), broker.ErrLockHeld)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
