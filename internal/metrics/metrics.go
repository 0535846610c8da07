// Package metrics exposes Prometheus collectors for the scrape service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal             *prometheus.CounterVec
	pageDurationSeconds    prometheus.Histogram
	challengeWaitsTotal    prometheus.Counter
	structureFailuresTotal prometheus.Counter
	throttleDelaySeconds   prometheus.Histogram
	jobsTotal              *prometheus.CounterVec
	jobsRecoveredTotal     prometheus.Counter
	queueDepth             prometheus.Gauge
	activeExtractions      prometheus.Gauge
	matchesSavedTotal      prometheus.Counter
	httpRequestsTotal      *prometheus.CounterVec
	httpDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_pages_total",
				Help: "Report pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pageDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_page_duration_seconds",
				Help:    "Time from navigation to persisted record for one page.",
				Buckets: []float64{1, 2, 5, 10, 20, 45, 90},
			},
		)

		challengeWaitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_challenge_waits_total",
				Help: "Navigations that hit an interstitial challenge page.",
			},
		)

		structureFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_structure_failures_total",
				Help: "Pages rejected by structural validation.",
			},
		)

		throttleDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_throttle_delay_seconds",
				Help:    "Adaptive throttle waits between navigations.",
				Buckets: []float64{0.5, 1, 2, 3, 5, 8},
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		jobsRecoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_jobs_recovered_total",
				Help: "Jobs re-enqueued by crash recovery.",
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_queue_depth",
				Help: "Jobs waiting in the queue.",
			},
		)

		activeExtractions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_extractions",
				Help: "Pages currently being extracted.",
			},
		)

		matchesSavedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_matches_saved_total",
				Help: "Match records persisted.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one finished page with its outcome and duration.
func ObservePage(outcome string, duration time.Duration) {
	pagesTotal.WithLabelValues(outcome).Inc()
	pageDurationSeconds.Observe(duration.Seconds())
}

// ObserveChallengeWait counts a navigation that hit a challenge page.
func ObserveChallengeWait() {
	challengeWaitsTotal.Inc()
}

// ObserveStructureFailure counts a page rejected by validation.
func ObserveStructureFailure() {
	structureFailuresTotal.Inc()
}

// ObserveThrottleDelay records one adaptive throttle wait.
func ObserveThrottleDelay(delay time.Duration) {
	throttleDelaySeconds.Observe(delay.Seconds())
}

// ObserveJob counts a job reaching a terminal status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveJobRecovered counts a crash-recovery re-enqueue.
func ObserveJobRecovered() {
	jobsRecoveredTotal.Inc()
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncActiveExtractions marks one extraction in flight.
func IncActiveExtractions() {
	activeExtractions.Inc()
}

// DecActiveExtractions marks one extraction done.
func DecActiveExtractions() {
	activeExtractions.Dec()
}

// ObserveMatchSaved counts one persisted match.
func ObserveMatchSaved() {
	matchesSavedTotal.Inc()
}

// ObserveHTTPRequest increments the API request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
