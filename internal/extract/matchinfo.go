package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brstats/statshub/internal/scrape"
)

type matchInfoPayload struct {
	Home       string `json:"home"`
	Away       string `json:"away"`
	HomeScore  string `json:"homeScore"`
	AwayScore  string `json:"awayScore"`
	HomeHT     string `json:"homeHT"`
	AwayHT     string `json:"awayHT"`
	Kickoff    string `json:"kickoff"`
	Venue      string `json:"venue"`
	Referee    string `json:"referee"`
	Attendance string `json:"attendance"`
	Status     string `json:"status"`
}

const gameReportInfoJS = `(() => {
	const root = document.querySelector("div.game-report");
	if (!root) return null;
	const txt = (sel) => { const el = root.querySelector(sel); return el ? el.textContent.trim() : ""; };
	return {
		home: txt(".team-home .name, .home .team-name"),
		away: txt(".team-away .name, .away .team-name"),
		homeScore: txt(".team-home .count, .home .score"),
		awayScore: txt(".team-away .count, .away .score"),
		homeHT: txt(".team-home .half-time"),
		awayHT: txt(".team-away .half-time"),
		kickoff: txt(".info .date, .match-date"),
		venue: txt(".info .stadium, .venue"),
		referee: txt(".info .referee"),
		attendance: txt(".info .attendance"),
		status: txt(".status")
	};
})()`

const matchHeaderInfoJS = `(() => {
	const root = document.querySelector("div.match-header");
	if (!root) return null;
	const txt = (sel) => { const el = root.querySelector(sel); return el ? el.textContent.trim() : ""; };
	const score = txt(".score");
	const parts = score.split(/[-x:]/).map(p => p.trim());
	return {
		home: txt(".team:first-child .name, .home-team"),
		away: txt(".team:last-child .name, .away-team"),
		homeScore: parts.length === 2 ? parts[0] : "",
		awayScore: parts.length === 2 ? parts[1] : "",
		homeHT: "", awayHT: "",
		kickoff: txt(".datetime, time"),
		venue: txt(".venue"),
		referee: txt(".referee"),
		attendance: txt(".attendance"),
		status: txt(".status")
	};
})()`

const teamLinksInfoJS = `(() => {
	const links = Array.from(document.querySelectorAll("h1 a[href*='/equipes/'], a.team-link")).slice(0, 2);
	if (links.length < 2) return null;
	const body = document.body ? document.body.innerText.slice(0, 4000) : "";
	const m = body.match(/(\d+)\s*[-x:]\s*(\d+)/);
	return {
		home: links[0].textContent.trim(),
		away: links[1].textContent.trim(),
		homeScore: m ? m[1] : "",
		awayScore: m ? m[2] : "",
		homeHT: "", awayHT: "", kickoff: "", venue: "", referee: "", attendance: "", status: ""
	};
})()`

func matchInfoStrategies() []strategy {
	return []strategy{
		{name: "game-report", run: matchInfoFrom(gameReportInfoJS)},
		{name: "match-header", run: matchInfoFrom(matchHeaderInfoJS)},
		{name: "team-links", run: matchInfoFrom(teamLinksInfoJS)},
	}
}

func matchInfoFrom(js string) func(context.Context, scrape.Evaluator, *scrape.MatchRecord) error {
	return func(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
		var payload *matchInfoPayload
		if err := decodePayload(ctx, ev, js, &payload); err != nil {
			return err
		}
		if payload == nil || payload.Home == "" || payload.Away == "" {
			return fmt.Errorf("%w: no team identity", errFacetMiss)
		}
		home, err := strconv.Atoi(strings.TrimSpace(payload.HomeScore))
		if err != nil {
			return fmt.Errorf("%w: home score %q", errFacetMiss, payload.HomeScore)
		}
		away, err := strconv.Atoi(strings.TrimSpace(payload.AwayScore))
		if err != nil {
			return fmt.Errorf("%w: away score %q", errFacetMiss, payload.AwayScore)
		}

		rec.HomeTeam = strings.TrimSpace(payload.Home)
		rec.AwayTeam = strings.TrimSpace(payload.Away)
		rec.HomeScore = home
		rec.AwayScore = away
		rec.HomeHT = ParseOptionalInt(payload.HomeHT)
		rec.AwayHT = ParseOptionalInt(payload.AwayHT)
		rec.KickoffAt = ParseKickoff(StripLabel(payload.Kickoff))
		rec.Venue = StripLabel(payload.Venue)
		rec.Referee = StripLabel(payload.Referee)
		rec.Attendance = ParseOptionalInt(StripLabel(payload.Attendance))
		if s := strings.TrimSpace(payload.Status); s != "" {
			rec.Status = strings.ToLower(s)
		} else {
			rec.Status = "finished"
		}
		return nil
	}
}
