package browser

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/scrape"
)

const (
	challengePollInterval = 2 * time.Second
	challengeBudget       = 30 * time.Second
)

// Interstitial challenge pages are recognized by text, not by status code:
// the block page returns 200 and swaps in real content once cleared.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cloudflare",
	"ray id",
}

// The snippet stays short on purpose: challenge pages put their markers at the
// very top, while real reports mention the vendor only in footers and badges.
const challengeProbeJS = `(() => {
	const body = document.body ? document.body.innerText : "";
	return { title: document.title || "", snippet: body.slice(0, 500) };
})()`

type challengeProbe struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

func looksLikeChallenge(title, body string) bool {
	haystack := strings.ToLower(title) + "\n" + strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// Between polls the page gets a nudge: a small scroll, synthetic mouse
// movement and a best-effort click on a verification checkbox when one is in
// the main document. Some challenge variants hold until they see activity.
const challengeNudgeJS = `(() => {
	window.scrollBy(0, 120);
	const move = new MouseEvent("mousemove", {
		bubbles: true,
		clientX: 200 + Math.floor(Math.random() * 400),
		clientY: 150 + Math.floor(Math.random() * 300),
	});
	document.dispatchEvent(move);
	const box = document.querySelector("input[type='checkbox'], .ctp-checkbox-label");
	if (box) box.click();
	return undefined;
})()`

// clearChallenge polls the page until the challenge markers disappear or the
// budget runs out. It reports whether a challenge was seen at all.
func clearChallenge(ctx context.Context, ev scrape.Evaluator, logger *zap.Logger, poll, budget time.Duration) (bool, error) {
	deadline := time.Now().Add(budget)
	waited := false
	for {
		var probe challengeProbe
		if err := ev.Evaluate(ctx, challengeProbeJS, &probe); err != nil {
			return waited, err
		}
		if !looksLikeChallenge(probe.Title, probe.Snippet) {
			return waited, nil
		}
		waited = true
		if time.Now().After(deadline) {
			return waited, scrape.ErrChallengeTimeout
		}
		if logger != nil {
			logger.Debug("waiting out challenge page", zap.String("title", probe.Title))
		}
		_ = ev.Evaluate(ctx, challengeNudgeJS, nil)

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
		}
	}
}
