package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/brstats/statshub/internal/scrape"
)

type statRow struct {
	Label string `json:"label"`
	Home  string `json:"home"`
	Away  string `json:"away"`
}

type graphRow struct {
	Label   string  `json:"label"`
	HomePct float64 `json:"homePct"`
	AwayPct float64 `json:"awayPct"`
}

const inlineStatsJS = `(() => {
	const rows = Array.from(document.querySelectorAll("div.stats-container tr, table.stats tr"));
	return rows.map(row => {
		const cells = Array.from(row.querySelectorAll("td, th")).map(c => c.textContent.trim());
		if (cells.length < 3) return null;
		return { label: cells[1], home: cells[0], away: cells[2] };
	}).filter(r => r && r.label);
})()`

const graphBarStatsJS = `(() => {
	const bars = Array.from(document.querySelectorAll("div.stats-container .stat-bar, div[data-stats] .bar-row"));
	return bars.map(bar => {
		const label = bar.querySelector(".label");
		const home = bar.querySelector(".home-bar, .bar.home");
		const away = bar.querySelector(".away-bar, .bar.away");
		if (!label || !home || !away) return null;
		return {
			label: label.textContent.trim(),
			homePct: parseFloat(home.style.width) || 0,
			awayPct: parseFloat(away.style.width) || 0
		};
	}).filter(r => r);
})()`

func statisticsStrategies() []strategy {
	return []strategy{
		{name: "inline-table", run: inlineTableStats},
		{name: "graph-bars", run: graphBarStats},
	}
}

func inlineTableStats(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var rows []statRow
	if err := decodePayload(ctx, ev, inlineStatsJS, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no stat rows", errFacetMiss)
	}
	home := map[string]any{}
	away := map[string]any{}
	for _, row := range rows {
		key := statKey(row.Label)
		if key == "" {
			continue
		}
		home[key] = ParseValue(row.Home)
		away[key] = ParseValue(row.Away)
	}
	if len(home) == 0 {
		return fmt.Errorf("%w: no usable stat labels", errFacetMiss)
	}
	rec.HomeStats = home
	rec.AwayStats = away
	return nil
}

func graphBarStats(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var rows []graphRow
	if err := decodePayload(ctx, ev, graphBarStatsJS, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no stat bars", errFacetMiss)
	}
	home := map[string]any{}
	away := map[string]any{}
	for _, row := range rows {
		key := statKey(row.Label)
		if key == "" {
			continue
		}
		home[key] = row.HomePct
		away[key] = row.AwayPct
	}
	rec.HomeStats = home
	rec.AwayStats = away
	return nil
}

// statKey folds a display label into a stable map key.
func statKey(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(label))), "_")
}
