// Package worker runs queued scrape jobs: one supervisor owns the queue, a
// pipeline turns one job into persisted match records.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/archive"
	"github.com/brstats/statshub/internal/broker"
	"github.com/brstats/statshub/internal/extract"
	"github.com/brstats/statshub/internal/metrics"
	"github.com/brstats/statshub/internal/scrape"
)

// Pipeline executes the scraping work for one job and reports how many of
// the round's matches landed in the store.
type Pipeline interface {
	Run(ctx context.Context, job *broker.Job, progress func(scraped, total int)) (scraped, total int, err error)
}

// PageSession is one live report page. browser.Session satisfies it; tests
// substitute canned pages.
type PageSession interface {
	scrape.Evaluator
	NavigateReport(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Pace(ctx context.Context) error
	Close()
}

// SessionFactory opens a fresh browser session.
type SessionFactory func(ctx context.Context) (PageSession, error)

// RoundLister resolves a round into its report URLs.
type RoundLister interface {
	MatchURLs(ctx context.Context, league scrape.League, year, round int) ([]string, error)
}

// MatchStore is the slice of persistence the pipeline needs.
type MatchStore interface {
	SaveMatch(ctx context.Context, rec *scrape.MatchRecord) error
	Exists(ctx context.Context, sourceURL string) (bool, error)
	LastRound(ctx context.Context, league string, year int) (int, error)
}

// ScrapePipeline discovers a round's pages and processes them with a bounded
// pool of browser sessions. Individual page failures are logged and skipped;
// the job survives as long as discovery worked.
type ScrapePipeline struct {
	lister      RoundLister
	sessions    SessionFactory
	extractor   *extract.Extractor
	store       MatchStore
	archiver    archive.Archiver
	retry       scrape.RetryPolicy
	concurrency int
	logger      *zap.Logger
}

// NewScrapePipeline wires the pipeline. Concurrency below 1 defaults to 2.
func NewScrapePipeline(
	lister RoundLister,
	sessions SessionFactory,
	extractor *extract.Extractor,
	store MatchStore,
	archiver archive.Archiver,
	concurrency int,
	logger *zap.Logger,
) *ScrapePipeline {
	if concurrency < 1 {
		concurrency = 2
	}
	return &ScrapePipeline{
		lister:      lister,
		sessions:    sessions,
		extractor:   extractor,
		store:       store,
		archiver:    archiver,
		retry:       scrape.DefaultRetryPolicy(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run scrapes every match of the job's round.
func (p *ScrapePipeline) Run(ctx context.Context, job *broker.Job, progress func(scraped, total int)) (int, int, error) {
	league, ok := scrape.LeagueBySlug(job.League)
	if !ok {
		return 0, 0, fmt.Errorf("unknown league %q", job.League)
	}

	// round 0 means "the next round after the last one persisted"
	if job.Round < 1 {
		last, err := p.store.LastRound(ctx, job.League, job.Year)
		if err != nil {
			return 0, 0, fmt.Errorf("resolve next round: %w", err)
		}
		if last >= league.NumRounds {
			return 0, 0, fmt.Errorf("season %d of %s already fully scraped", job.Year, league.Slug)
		}
		job.Round = last + 1
		p.logger.Info("auto-detected round",
			zap.String("job_id", job.ID),
			zap.Int("round", job.Round),
		)
	}

	urls, err := p.lister.MatchURLs(ctx, league, job.Year, job.Round)
	if err != nil {
		return 0, 0, fmt.Errorf("discover round: %w", err)
	}
	total := len(urls)

	var (
		mu      sync.Mutex
		scraped int
		wg      sync.WaitGroup
		sem     = make(chan struct{}, p.concurrency)
	)
	report := func() {
		mu.Lock()
		n := scraped
		mu.Unlock()
		if progress != nil {
			progress(n, total)
		}
	}

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()
			if p.processPage(ctx, job, url) {
				mu.Lock()
				scraped++
				mu.Unlock()
				report()
			}
		}(url)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return scraped, total, err
	}
	if scraped == 0 && total > 0 {
		return 0, total, fmt.Errorf("no pages of %d-match round survived scraping", total)
	}
	return scraped, total, nil
}

func (p *ScrapePipeline) processPage(ctx context.Context, job *broker.Job, url string) bool {
	logger := p.logger.With(zap.String("job_id", job.ID), zap.String("url", url))

	exists, err := p.store.Exists(ctx, url)
	if err != nil {
		logger.Error("existence check failed", zap.Error(err))
		return false
	}
	if exists {
		logger.Debug("match already persisted, skipping")
		metrics.ObservePage("skipped", 0)
		return true
	}

	metrics.IncActiveExtractions()
	defer metrics.DecActiveExtractions()

	start := time.Now()
	rec, html, err := p.scrapePage(ctx, job, url)
	if err != nil {
		var ise *scrape.InvalidStructureError
		if errors.As(err, &ise) {
			metrics.ObserveStructureFailure()
			logger.Error("page structure rejected", zap.Any("diagnostic", ise.Diagnostic()))
		} else {
			logger.Error("page scrape failed", zap.Error(err))
		}
		metrics.ObservePage("failed", time.Since(start))
		return false
	}

	if err := p.store.SaveMatch(ctx, rec); err != nil {
		logger.Error("persist failed", zap.Error(err))
		metrics.ObservePage("failed", time.Since(start))
		return false
	}
	metrics.ObserveMatchSaved()

	if p.archiver != nil && len(html) > 0 {
		key := archive.SnapshotKey(job.League, job.Year, job.Round, pageID(url))
		if uri, err := p.archiver.Save(ctx, key, html); err != nil {
			logger.Warn("snapshot archive failed", zap.Error(err))
		} else {
			logger.Debug("snapshot archived", zap.String("uri", uri))
		}
	}

	metrics.ObservePage("success", time.Since(start))
	logger.Info("match persisted",
		zap.String("home", rec.HomeTeam),
		zap.String("away", rec.AwayTeam),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

// scrapePage opens a session, loads the report through the retry policy and
// extracts the record. The rendered HTML comes back for archiving.
func (p *ScrapePipeline) scrapePage(ctx context.Context, job *broker.Job, url string) (*scrape.MatchRecord, []byte, error) {
	session, err := p.sessions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	rec := &scrape.MatchRecord{
		LeagueSlug: job.League,
		Year:       job.Year,
		Round:      job.Round,
		SourceURL:  url,
	}

	err = p.retry.Do(ctx, p.logger, "scrape "+url, func(ctx context.Context) error {
		if err := session.NavigateReport(ctx, url); err != nil {
			return err
		}
		return p.extractor.Extract(ctx, session, rec)
	})
	if err != nil {
		return nil, nil, err
	}

	var html []byte
	if raw, err := session.HTML(ctx); err == nil {
		html = []byte(raw)
	}
	// pacing only protects the next navigation; once the record is extracted
	// an interrupted wait must not throw the page away
	if err := session.Pace(ctx); err != nil {
		p.logger.Debug("pacing interrupted", zap.String("url", url), zap.Error(err))
	}
	return rec, html, nil
}

func pageID(url string) string {
	id := url
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			id = url[i+1:]
			break
		}
	}
	if id == "" {
		return "page"
	}
	return id
}
