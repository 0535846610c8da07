package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/brstats/statshub/internal/scrape"
)

type ratingRow struct {
	SourceID int64  `json:"sourceId"`
	Name     string `json:"name"`
	Rating   string `json:"rating"`
}

type playerStatRow struct {
	SourceID int64             `json:"sourceId"`
	Name     string            `json:"name"`
	Stats    map[string]string `json:"stats"`
}

const ratingsJS = `(() => {
	const rows = Array.from(document.querySelectorAll(".ratings tr, .player-ratings li"));
	return rows.map(row => {
		const link = row.querySelector("a[href*='/jogadores/']");
		let sourceId = 0;
		if (link) {
			const m = link.getAttribute("href").match(/\/jogadores\/(\d+)/);
			if (m) sourceId = parseInt(m[1], 10);
		}
		const name = row.querySelector(".name") || link;
		const rating = row.querySelector(".rating, .note");
		if (!name || !rating) return null;
		return { sourceId: sourceId, name: name.textContent.trim(), rating: rating.textContent.trim() };
	}).filter(r => r);
})()`

const playerStatsJS = `(() => {
	const table = document.querySelector("table.player-stats");
	if (!table) return [];
	const headers = Array.from(table.querySelectorAll("thead th")).map(h => h.textContent.trim()).slice(1);
	return Array.from(table.querySelectorAll("tbody tr")).map(row => {
		const cells = Array.from(row.querySelectorAll("td"));
		if (cells.length < 2) return null;
		const link = cells[0].querySelector("a[href*='/jogadores/']");
		let sourceId = 0;
		if (link) {
			const m = link.getAttribute("href").match(/\/jogadores\/(\d+)/);
			if (m) sourceId = parseInt(m[1], 10);
		}
		const stats = {};
		headers.forEach((h, i) => {
			if (cells[i + 1]) stats[h] = cells[i + 1].textContent.trim();
		});
		return { sourceId: sourceId, name: cells[0].textContent.trim(), stats: stats };
	}).filter(r => r);
})()`

// Some report variants render ratings on a pitch graphic instead of a table:
// one block per player, the rating on a colored badge and the site's player id
// on the block itself.
const pitchRatingsJS = `(() => {
	const pitch = document.querySelector(".pitch_eleven_horizontal");
	if (!pitch) return [];
	return Array.from(pitch.querySelectorAll(".campo_onze_bloco_jogador")).map(block => {
		const name = block.querySelector(".player_name .player span, .player_name");
		const badge = block.querySelector("span[style*='background-color']");
		return {
			sourceId: parseInt(block.getAttribute("data-player-id") || "0", 10) || 0,
			name: name ? name.textContent.trim() : "",
			rating: badge ? badge.textContent.trim() : "",
		};
	}).filter(r => r.name && r.rating);
})()`

func ratingStrategies() []strategy {
	return []strategy{
		{name: "ratings-table", run: ratingsTable},
		{name: "pitch-blocks", run: pitchRatings},
	}
}

func playerStatStrategies() []strategy {
	return []strategy{
		{name: "player-stats-table", run: playerStatsTable},
		{name: "player-modals", run: playerModalStats},
	}
}

func ratingsTable(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	return ratingsFromScript(ctx, ev, ratingsJS, rec)
}

func pitchRatings(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	return ratingsFromScript(ctx, ev, pitchRatingsJS, rec)
}

func ratingsFromScript(ctx context.Context, ev scrape.Evaluator, js string, rec *scrape.MatchRecord) error {
	var rows []ratingRow
	if err := decodePayload(ctx, ev, js, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rating rows", errFacetMiss)
	}
	for _, row := range rows {
		entry := findPlayer(rec, row.SourceID, row.Name)
		if entry == nil {
			continue
		}
		score, grade := ParseRating(row.Rating)
		if entry.Rating == nil && entry.RatingGrade == "" {
			entry.Rating = score
			entry.RatingGrade = grade
		}
	}
	return nil
}

// Without a stats table, per-player numbers only exist behind a popup that
// opens when a pitch block is clicked. The modal strategy walks every block,
// opens its popup, parses the label/value lines grouped under the defesa,
// passe and ataque headers, and closes it again.
const modalPlayerListJS = `(() =>
	Array.from(document.querySelectorAll(".campo_onze_bloco_jogador[data-player-id]"))
		.map(b => parseInt(b.getAttribute("data-player-id"), 10))
		.filter(id => id > 0)
)()`

const openPlayerModalJS = `(() => {
	const block = document.querySelector(".campo_onze_bloco_jogador[data-player-id='%d']");
	if (!block) return false;
	block.click();
	return true;
})()`

const readPlayerModalJS = `(() => {
	const popup = document.querySelector("#match-player-stats-popup");
	if (!popup || !popup.innerText) return null;
	const badge = popup.querySelector("span[style*='background-color']");
	const lines = popup.innerText.split("\n").map(l => l.trim()).filter(l => l);
	const header = /^(defesa|passe|ataque)$/i;
	const value = /^[\d\-\/\.\(\)%]+$/;
	const stats = {};
	let category = "";
	for (let i = 0; i < lines.length; i++) {
		if (header.test(lines[i])) { category = lines[i].toLowerCase(); continue; }
		if (i + 1 < lines.length && value.test(lines[i + 1]) && !value.test(lines[i])) {
			stats[(category ? category + " " : "") + lines[i]] = lines[i + 1];
			i++;
		}
	}
	return { rating: badge ? badge.textContent.trim() : "", stats: stats };
})()`

const closePlayerModalJS = `(() => {
	const close = document.querySelector(".zz-popup-close, #match-player-stats-popup .close");
	if (close) { close.click(); return undefined; }
	const overlay = document.querySelector(".zz-popup-overlay");
	if (overlay) overlay.click();
	return undefined;
})()`

const modalSettle = 400 * time.Millisecond

type playerModalPayload struct {
	Rating string            `json:"rating"`
	Stats  map[string]string `json:"stats"`
}

func playerModalStats(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var ids []int64
	if err := decodePayload(ctx, ev, modalPlayerListJS, &ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no player blocks", errFacetMiss)
	}

	matched := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		modal, err := openAndReadModal(ctx, ev, id)
		if err != nil {
			return err
		}
		if modal == nil {
			continue
		}
		entry := findPlayer(rec, id, "")
		if entry == nil {
			continue
		}
		applyModal(entry, modal)
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("%w: no modal matched a lineup player", errFacetMiss)
	}
	return nil
}

// openAndReadModal clicks one pitch block and polls for the popup content.
// The popup renders asynchronously, so a miss gets a short settle before the
// next poll. A nil payload with nil error means the modal never appeared.
func openAndReadModal(ctx context.Context, ev scrape.Evaluator, id int64) (*playerModalPayload, error) {
	var opened bool
	if err := ev.Evaluate(ctx, fmt.Sprintf(openPlayerModalJS, id), &opened); err != nil || !opened {
		return nil, nil
	}
	defer func() { _ = ev.Evaluate(ctx, closePlayerModalJS, nil) }()

	for attempt := 0; attempt < 3; attempt++ {
		var modal *playerModalPayload
		if err := ev.Evaluate(ctx, readPlayerModalJS, &modal); err == nil && modal != nil {
			return modal, nil
		}
		timer := time.NewTimer(modalSettle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, nil
}

func applyModal(entry *scrape.PlayerEntry, modal *playerModalPayload) {
	if entry.Stats == nil {
		entry.Stats = map[string]any{}
	}
	for label, raw := range modal.Stats {
		key := statKey(label)
		if _, exists := entry.Stats[key]; !exists {
			entry.Stats[key] = ParseValue(raw)
		}
	}
	if score, grade := ParseRating(modal.Rating); entry.Rating == nil && entry.RatingGrade == "" {
		entry.Rating = score
		entry.RatingGrade = grade
	}
}

func playerStatsTable(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var rows []playerStatRow
	if err := decodePayload(ctx, ev, playerStatsJS, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no player stat rows", errFacetMiss)
	}
	for _, row := range rows {
		entry := findPlayer(rec, row.SourceID, row.Name)
		if entry == nil {
			continue
		}
		if entry.Stats == nil {
			entry.Stats = map[string]any{}
		}
		for label, raw := range row.Stats {
			key := statKey(label)
			if _, exists := entry.Stats[key]; exists {
				continue
			}
			entry.Stats[key] = ParseValue(raw)
		}
	}
	return nil
}
