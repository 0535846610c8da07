// Package discovery turns a (league, year, round) triple into the list of
// match report URLs for that round.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/scrape"
)

var matchPathRe = regexp.MustCompile(`/partidas/\d+`)

// Config controls the listing probe.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// HeadlessFallback lists report anchors with a rendered browser. It is used
// when the plain HTTP probe finds nothing, which happens when the listing is
// populated by JavaScript or sits behind a challenge.
type HeadlessFallback func(ctx context.Context, url string) ([]string, error)

// Lister probes round listing pages with a cheap HTTP collector first and
// promotes to a headless session only when that probe comes back empty.
type Lister struct {
	cfg      Config
	headless HeadlessFallback
	logger   *zap.Logger
}

func New(cfg Config, headless HeadlessFallback, logger *zap.Logger) *Lister {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Lister{cfg: cfg, headless: headless, logger: logger}
}

// MatchURLs returns the report URLs for one round, in page order, deduped.
func (l *Lister) MatchURLs(ctx context.Context, league scrape.League, year, round int) ([]string, error) {
	url := league.RoundURL(l.cfg.BaseURL, year, round)

	urls, err := l.probe(ctx, url)
	if err != nil {
		l.logger.Warn("listing probe failed", zap.String("url", url), zap.Error(err))
	}
	if len(urls) > 0 {
		return urls, nil
	}
	if l.headless == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no match links at %s", url)
	}

	l.logger.Info("promoting listing to headless", zap.String("url", url))
	urls, err = l.headless(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("headless listing %s: %w", url, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no match links at %s", url)
	}
	return dedupe(urls), nil
}

func (l *Lister) probe(ctx context.Context, url string) ([]string, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.IgnoreRobotsTxt = false
	collector.SetRequestTimeout(l.cfg.Timeout)
	if l.cfg.UserAgent != "" {
		collector.UserAgent = l.cfg.UserAgent
	}

	var urls []string
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if matchPathRe.MatchString(href) {
			urls = append(urls, e.Request.AbsoluteURL(href))
		}
	})

	var visitErr error
	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("listing probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, err
		}
		if visitErr != nil {
			return nil, visitErr
		}
	}
	return dedupe(urls), nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
