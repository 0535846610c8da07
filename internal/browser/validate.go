package browser

import (
	"context"

	"github.com/brstats/statshub/internal/scrape"
)

// structureProbeJS checks for the three anchors every report page must carry
// before extraction is worth attempting: the match identity header, a score,
// and the statistics container. Each anchor has the same fallbacks the
// extraction strategies use.
const structureProbeJS = `(() => {
	const q = (sel) => document.querySelector(sel) !== null;
	const identity = q("div.game-report") || q("div.match-header") || q("h1 a[href*='/equipes/']");
	const score = q("div.game-report .count") || q("div.match-header .score") ||
		/\d+\s*[-x:]\s*\d+/.test(document.body ? document.body.innerText.slice(0, 4000) : "");
	const stats = q("div.stats-container") || q("table.stats") || q("div[data-stats]");
	return { identity: identity, score: score, stats: stats };
})()`

type structureProbe struct {
	Identity bool `json:"identity"`
	Score    bool `json:"score"`
	Stats    bool `json:"stats"`
}

// ValidateStructure verifies the page exposes the anchors extraction relies
// on, so partial loads and silent layout changes fail loudly here instead of
// producing half-empty records downstream.
func ValidateStructure(ctx context.Context, ev scrape.Evaluator, url string) error {
	var probe structureProbe
	if err := ev.Evaluate(ctx, structureProbeJS, &probe); err != nil {
		return err
	}

	var missing []string
	if !probe.Identity {
		missing = append(missing, "match identity")
	}
	if !probe.Score {
		missing = append(missing, "score")
	}
	if !probe.Stats {
		missing = append(missing, "statistics container")
	}
	if len(missing) == 0 {
		return nil
	}
	return &scrape.InvalidStructureError{
		URL:     url,
		Missing: missing,
		Hint:    "the page may be a partial load or the site layout changed; retry first, then inspect a snapshot",
	}
}
