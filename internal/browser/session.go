// Package browser drives headless Chrome sessions hardened against
// anti-automation checks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/metrics"
	"github.com/brstats/statshub/internal/scrape"
)

// Config controls the headless engine.
type Config struct {
	Headless          bool
	UserAgent         string
	Locale            string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	MaxParallel       int
	Proxies           []string
	ThrottleMin       time.Duration
	ThrottleMax       time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Engine owns the shared pacing and proxy state and opens one browser process
// per session so proxy selection can vary between sessions.
type Engine struct {
	cfg      Config
	limiter  chan struct{}
	throttle *scrape.AdaptiveThrottle
	proxies  *scrape.ProxyPool
	logger   *zap.Logger
}

// NewEngine validates the config and builds an engine. No browser process is
// started until OpenSession.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Locale == "" {
		cfg.Locale = "pt-BR"
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1920
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 1080
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Engine{
		cfg:      cfg,
		limiter:  limiter,
		throttle: scrape.NewAdaptiveThrottle(cfg.ThrottleMin, cfg.ThrottleMax),
		proxies:  scrape.NewProxyPool(cfg.Proxies),
		logger:   logger,
	}, nil
}

// Throttle exposes the shared pacing state for observability.
func (e *Engine) Throttle() *scrape.AdaptiveThrottle {
	return e.throttle
}

// OpenSession starts a fresh browser process with a randomly selected proxy.
// The caller must Close the session to release its parallelism slot.
func (e *Engine) OpenSession(ctx context.Context) (*Session, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}

	proxy := e.proxies.Pick()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", e.cfg.Locale),
		chromedp.UserAgent(e.cfg.UserAgent),
		chromedp.WindowSize(e.cfg.ViewportWidth, e.cfg.ViewportHeight),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(e.cfg.UserAgent).WithAcceptLanguage(e.cfg.Locale),
	); err != nil {
		tabCancel()
		allocCancel()
		e.release()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	logger := e.logger
	if proxy != "" {
		logger = logger.With(zap.String("proxy", scrape.MaskProxy(proxy)))
		logger.Debug("session using proxy")
	}

	return &Session{
		engine:      e,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (e *Engine) release() {
	if e.limiter == nil {
		return
	}
	select {
	case <-e.limiter:
	default:
	}
}

// Session is a single browser tab. It implements scrape.Evaluator so the
// extraction layer can run probes against the live page.
type Session struct {
	engine      *Engine
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	lastLatency time.Duration
}

// Close tears down the tab and browser process and frees the slot.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
	s.engine.release()
}

// Navigate loads url and waits out any interstitial challenge. The observed
// latency feeds the shared throttle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(s.tabCtx, s.engine.cfg.NavigationTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	start := time.Now()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		// the navigation budget expiring is the page being slow, not the
		// caller giving up; surface it as the retryable timeout
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigate %s: %w", url, scrape.ErrNavigationTimeout)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.lastLatency = time.Since(start)

	waited, err := clearChallenge(ctx, s, s.logger, challengePollInterval, challengeBudget)
	if waited {
		metrics.ObserveChallengeWait()
	}
	return err
}

// NavigateReport loads a match report page and additionally verifies it
// carries the structure extraction depends on.
func (s *Session) NavigateReport(ctx context.Context, url string) error {
	return resolveReport(ctx, s, url, s.Navigate(ctx, url))
}

// resolveReport settles a navigation outcome against the page structure. The
// challenge markers are plain text, so a report that merely mentions the
// vendor can burn the whole challenge budget; when the required structure is
// present anyway the page is good and the expiry is dropped.
func resolveReport(ctx context.Context, ev scrape.Evaluator, url string, navErr error) error {
	if navErr != nil && !errors.Is(navErr, scrape.ErrChallengeTimeout) {
		return navErr
	}
	if err := ValidateStructure(ctx, ev, url); err != nil {
		if navErr != nil {
			return navErr
		}
		return err
	}
	return nil
}

// Pace blocks for the throttle delay derived from the last navigation.
func (s *Session) Pace(ctx context.Context) error {
	start := time.Now()
	if err := s.engine.throttle.Wait(ctx, s.lastLatency); err != nil {
		return err
	}
	metrics.ObserveThrottleDelay(time.Since(start))
	return nil
}

// Evaluate runs a JavaScript expression in the page.
func (s *Session) Evaluate(ctx context.Context, js string, out any) error {
	evalCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(evalCtx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// HTML returns the rendered document, used for snapshot archiving.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.Evaluate(ctx, "document.documentElement.outerHTML", &html); err != nil {
		return "", err
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
