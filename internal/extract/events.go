package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/brstats/statshub/internal/scrape"
)

type eventRow struct {
	Minute    string `json:"minute"`
	Period    string `json:"period"`
	Side      string `json:"side"`
	Kind      string `json:"kind"`
	Player    string `json:"player"`
	Secondary string `json:"secondary"`
	Detail    string `json:"detail"`
}

const timelineEventsJS = `(() => {
	const rows = Array.from(document.querySelectorAll("div.timeline .event, ul.events li"));
	return rows.map(row => {
		const txt = (sel) => { const el = row.querySelector(sel); return el ? el.textContent.trim() : ""; };
		const side = row.classList.contains("home") || row.closest(".home-events") ? "home" : "away";
		return {
			minute: txt(".minute, .time"),
			period: row.closest("[data-period]") ? row.closest("[data-period]").getAttribute("data-period") : "",
			side: side,
			kind: (row.getAttribute("data-type") || txt(".icon, .type") || "").trim(),
			player: txt(".player, .name"),
			secondary: txt(".player-out, .assist, .secondary"),
			detail: txt(".detail, .note")
		};
	}).filter(r => r.minute && r.kind);
})()`

// Pages without a timeline still list goals next to the header score and mark
// bookings with card icons inside the player rows; the second strategy
// reassembles the timeline from those fragments.
const headerEventsJS = `(() => {
	const out = [];
	const scorerRe = /([A-Za-zÀ-ÖØ-öø-ÿ'. -]+?)\s+(\d+)'(?:\s*\+\s*(\d+))?/g;
	const readScorers = (sel, side) => {
		const el = document.querySelector(sel);
		if (!el) return;
		const text = el.innerText || "";
		let m;
		while ((m = scorerRe.exec(text)) !== null) {
			out.push({
				minute: m[2] + (m[3] ? "+" + m[3] : "") + "'",
				side: side,
				kind: "gol",
				player: m[1].trim(),
			});
		}
	};
	readScorers(".match-header-scorers.left", "home");
	readScorers(".match-header-scorers.right", "away");
	document.querySelectorAll(".yellow-card, .red-card").forEach(card => {
		const holder = card.closest(".player, .event");
		if (!holder) return;
		const link = holder.querySelector("a[href*='/jogador/']");
		const minute = (holder.innerText || "").match(/(\d+)'/);
		out.push({
			minute: minute ? minute[1] + "'" : "",
			side: holder.closest(".home, .team-home") ? "home" : "away",
			kind: card.classList.contains("red-card") ? "cartão vermelho" : "cartão amarelo",
			player: link ? link.textContent.trim() : "",
		});
	});
	return out;
})()`

func eventStrategies() []strategy {
	return []strategy{
		{name: "timeline", run: timelineEvents},
		{name: "header-scorers", run: headerEvents},
	}
}

func timelineEvents(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	return eventsFromScript(ctx, ev, timelineEventsJS, rec)
}

func headerEvents(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	return eventsFromScript(ctx, ev, headerEventsJS, rec)
}

func eventsFromScript(ctx context.Context, ev scrape.Evaluator, js string, rec *scrape.MatchRecord) error {
	var rows []eventRow
	if err := decodePayload(ctx, ev, js, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no event rows", errFacetMiss)
	}

	events := make([]scrape.Event, 0, len(rows))
	for _, row := range rows {
		minute, stoppage, ok := ParseMinute(row.Minute)
		if !ok {
			continue
		}
		kind, ok := eventKind(row.Kind)
		if !ok {
			continue
		}
		side := scrape.SideAway
		if row.Side == "home" {
			side = scrape.SideHome
		}
		events = append(events, scrape.Event{
			Type:            kind,
			Minute:          minute,
			StoppageMinute:  stoppage,
			Period:          eventPeriod(row.Period, minute),
			Side:            side,
			Player:          strings.TrimSpace(row.Player),
			SecondaryPlayer: strings.TrimSpace(row.Secondary),
			Detail:          strings.TrimSpace(row.Detail),
		})
	}
	if len(events) == 0 {
		return fmt.Errorf("%w: no parseable events", errFacetMiss)
	}
	rec.Events = events
	return nil
}

func eventKind(raw string) (scrape.EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "goal", "gol":
		return scrape.EventGoal, true
	case "own-goal", "own_goal", "gol contra":
		return scrape.EventOwnGoal, true
	case "penalty", "penalty-goal", "gol de pênalti", "gol de penalti":
		return scrape.EventPenaltyGoal, true
	case "yellow", "yellow-card", "cartão amarelo", "cartao amarelo":
		return scrape.EventYellowCard, true
	case "red", "red-card", "cartão vermelho", "cartao vermelho":
		return scrape.EventRedCard, true
	case "second-yellow", "segundo amarelo":
		return scrape.EventSecondYellow, true
	case "sub", "substitution", "substituição", "substituicao":
		return scrape.EventSubstitution, true
	default:
		return "", false
	}
}

func eventPeriod(raw string, minute int) int {
	switch strings.TrimSpace(raw) {
	case "1":
		return 1
	case "2":
		return 2
	}
	if minute <= 45 {
		return 1
	}
	return 2
}
