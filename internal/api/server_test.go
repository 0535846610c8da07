package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/broker"
	"github.com/brstats/statshub/internal/broker/memory"
	"github.com/brstats/statshub/internal/clock/system"
	"github.com/brstats/statshub/internal/id/uuid"
	"github.com/brstats/statshub/internal/metrics"
)

type testEnv struct {
	queue *memory.Queue
	jobs  *memory.JobStore
	srv   *httptest.Server
}

func newTestEnv(t *testing.T, ready ReadyFunc) *testEnv {
	t.Helper()
	metrics.Init()
	env := &testEnv{
		queue: memory.NewQueue(),
		jobs:  memory.NewJobStore(),
	}
	server := NewServer(env.queue, env.jobs, uuid.New(), system.New(), ready, zap.NewNop())
	env.srv = httptest.NewServer(server.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeJob(t *testing.T, resp *http.Response) broker.Job {
	t.Helper()
	defer resp.Body.Close()
	var payload struct {
		Job broker.Job `json:"job"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Job
}

func TestSubmitJob(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.post(t, "/api/scrape", map[string]any{
		"league": "brasileirao-serie-a",
		"year":   2025,
		"round":  7,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := decodeJob(t, resp)
	require.NotEmpty(t, job.ID)
	require.Equal(t, broker.StatusQueued, job.Status)
	require.Equal(t, "brasileirao-serie-a", job.League)
	require.False(t, job.EnqueuedAt.IsZero())

	pending, err := env.queue.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, pending)
}

func TestSubmitJobValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown league", map[string]any{"league": "ligue-1", "year": 2025, "round": 1}},
		{"round beyond schedule", map[string]any{"league": "copa-do-brasil", "year": 2025, "round": 15}},
		{"negative round", map[string]any{"league": "brasileirao-serie-a", "year": 2025, "round": -1}},
		{"ancient year", map[string]any{"league": "brasileirao-serie-a", "year": 1994, "round": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, "/api/scrape", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NoError(t, resp.Body.Close())
		})
	}
}

func TestSubmitJobRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]any{"league": "brasileirao-serie-a", "year": 2025, "round": 7}

	resp := env.post(t, "/api/scrape", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	first := decodeJob(t, resp)

	resp = env.post(t, "/api/scrape", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	dup := decodeJob(t, resp)
	require.Equal(t, first.ID, dup.ID)

	// a completed job frees the slot
	done, err := env.jobs.Get(context.Background(), first.ID)
	require.NoError(t, err)
	done.Status = broker.StatusCompleted
	require.NoError(t, env.jobs.Put(context.Background(), done))

	resp = env.post(t, "/api/scrape", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestJobStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/scrape", map[string]any{"league": "brasileirao-serie-b", "year": 2025, "round": 2})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decodeJob(t, resp)

	resp = env.get(t, "/api/scrape/status/"+created.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJob(t, resp)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, 2, got.Round)

	resp = env.get(t, "/api/scrape/status/does-not-exist")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestListJobsFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	seed := []broker.Job{
		{ID: "a", League: "brasileirao-serie-a", Year: 2025, Round: 1, Status: broker.StatusCompleted, EnqueuedAt: now},
		{ID: "b", League: "brasileirao-serie-a", Year: 2025, Round: 2, Status: broker.StatusQueued, EnqueuedAt: now.Add(time.Second)},
		{ID: "c", League: "copa-do-brasil", Year: 2025, Round: 1, Status: broker.StatusQueued, EnqueuedAt: now.Add(2 * time.Second)},
	}
	for i := range seed {
		require.NoError(t, env.jobs.Put(ctx, &seed[i]))
	}

	var payload struct {
		Jobs []broker.Job `json:"jobs"`
	}
	resp := env.get(t, "/api/scrape/jobs?status=queued")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Len(t, payload.Jobs, 2)

	resp = env.get(t, "/api/scrape/jobs?status=queued&league=copa-do-brasil")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload.Jobs = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Len(t, payload.Jobs, 1)
	require.Equal(t, "c", payload.Jobs[0].ID)

	resp = env.get(t, "/api/scrape/jobs?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload.Jobs = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Len(t, payload.Jobs, 2)

	resp = env.get(t, "/api/scrape/jobs?limit=nope")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/scrape", map[string]any{"league": "brasileirao-serie-a", "year": 2025, "round": 5})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decodeJob(t, resp)

	resp = env.post(t, "/api/scrape/cancel/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decodeJob(t, resp)
	require.Equal(t, broker.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)

	// cancelling twice conflicts
	resp = env.post(t, "/api/scrape/cancel/"+created.ID, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp = env.post(t, "/api/scrape/cancel/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestQueueState(t *testing.T) {
	env := newTestEnv(t, nil)
	for round := 1; round <= 3; round++ {
		resp := env.post(t, "/api/scrape", map[string]any{"league": "brasileirao-serie-a", "year": 2025, "round": round})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}

	resp := env.get(t, "/api/scrape/queue")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Depth   int      `json:"depth"`
		Pending []string `json:"pending"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 3, payload.Depth)
	require.Len(t, payload.Pending, 3)
}

func TestPurgeJobs(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.jobs.Put(ctx, &broker.Job{ID: "done", Status: broker.StatusCompleted}))
	require.NoError(t, env.jobs.Put(ctx, &broker.Job{ID: "live", Status: broker.StatusProcessing}))

	req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/api/scrape/jobs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 1, payload.Removed)

	_, err = env.jobs.Get(ctx, "done")
	require.ErrorIs(t, err, broker.ErrJobNotFound)
	_, err = env.jobs.Get(ctx, "live")
	require.NoError(t, err)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp = env.get(t, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	down := newTestEnv(t, func(context.Context) error {
		return errors.New("redis unreachable")
	})
	resp = down.get(t, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/healthz")
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.NoError(t, resp.Body.Close())
}

func TestSubmitJobRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Post(env.srv.URL+"/api/scrape", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestJobIDsSortBySubmission(t *testing.T) {
	env := newTestEnv(t, nil)
	var ids []string
	for round := 1; round <= 3; round++ {
		resp := env.post(t, "/api/scrape", map[string]any{"league": "brasileirao-serie-a", "year": 2025, "round": round})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		ids = append(ids, decodeJob(t, resp).ID)
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], fmt.Sprintf("id %d should sort before id %d", i-1, i))
	}
}
