package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/broker"
	"github.com/brstats/statshub/internal/scrape"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > max {
		val = max
	}
	return val, nil
}

type submitRequest struct {
	League string `json:"league"`
	Year   int    `json:"year"`
	Round  int    `json:"round"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	league, ok := scrape.LeagueBySlug(req.League)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown league %q", req.League))
		return
	}
	if req.Year < 2000 || req.Year > s.clock.Now().Year()+1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("year %d out of range", req.Year))
		return
	}
	// round 0 is accepted and means the next unscraped round; the worker
	// resolves it against the matches table
	if req.Round < 0 || req.Round > league.NumRounds {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("round %d out of range for %s (1-%d)", req.Round, league.Slug, league.NumRounds))
		return
	}

	if dup, err := s.findActiveDuplicate(r.Context(), req); err != nil {
		s.logger.Error("duplicate scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to inspect existing jobs")
		return
	} else if dup != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "an identical job is already queued or processing",
			"job":   dup,
		})
		return
	}

	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("job id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	job := &broker.Job{
		ID:         id,
		League:     league.Slug,
		Year:       req.Year,
		Round:      req.Round,
		Status:     broker.StatusQueued,
		EnqueuedAt: s.clock.Now(),
	}
	if err := s.jobs.Put(r.Context(), job); err != nil {
		s.logger.Error("job create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	pushCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.queue.Push(pushCtx, job.ID); err != nil {
		s.logger.Error("job enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

// findActiveDuplicate returns an in-flight job for the same league, year and
// round, nil when the slot is free.
func (s *Server) findActiveDuplicate(ctx context.Context, req submitRequest) (*broker.Job, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Active() && job.League == req.League && job.Year == req.Year && job.Round == req.Round {
			return job, nil
		}
	}
	return nil, nil
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	limit, err := parseLimit(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	league := strings.TrimSpace(r.URL.Query().Get("league"))
	filtered := make([]*broker.Job, 0, len(jobs))
	for _, job := range jobs {
		if status != "" && string(job.Status) != status {
			continue
		}
		if league != "" && job.League != league {
			continue
		}
		filtered = append(filtered, job)
		if len(filtered) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": filtered})
}

func (s *Server) purgeJobs(w http.ResponseWriter, r *http.Request) {
	removed, err := s.jobs.DeleteTerminal(r.Context())
	if err != nil {
		s.logger.Error("purge jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to purge jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": fmt.Sprintf("job is already %s", job.Status),
			"job":   job,
		})
		return
	}

	// a processing job keeps running until the worker observes the status
	// between attempts; a queued job is skipped when popped
	job.Status = broker.StatusCancelled
	now := s.clock.Now()
	job.CompletedAt = &now
	if err := s.jobs.Put(r.Context(), job); err != nil {
		s.logger.Error("job cancel failed", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) queueState(w http.ResponseWriter, r *http.Request) {
	pending, err := s.queue.Pending(r.Context())
	if err != nil {
		s.logger.Error("queue inspection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to inspect queue")
		return
	}
	if pending == nil {
		pending = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depth":   len(pending),
		"pending": pending,
	})
}
