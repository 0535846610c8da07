package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/brstats/statshub/internal/scrape"
)

type lineupPlayer struct {
	SourceID int64  `json:"sourceId"`
	Name     string `json:"name"`
	Number   string `json:"number"`
}

type lineupSide struct {
	Team     string         `json:"team"`
	Coach    string         `json:"coach"`
	Starters []lineupPlayer `json:"starters"`
	Bench    []lineupPlayer `json:"bench"`
}

type lineupPayload struct {
	Home *lineupSide `json:"home"`
	Away *lineupSide `json:"away"`
}

const pitchLineupsJS = `(() => {
	const side = (root) => {
		if (!root) return null;
		const players = (sel) => Array.from(root.querySelectorAll(sel)).map(el => {
			const link = el.querySelector("a[href*='/jogadores/']");
			let sourceId = 0;
			if (link) {
				const m = link.getAttribute("href").match(/\/jogadores\/(\d+)/);
				if (m) sourceId = parseInt(m[1], 10);
			}
			const num = el.querySelector(".number, .shirt");
			const name = el.querySelector(".name") || link || el;
			return { sourceId: sourceId, name: name.textContent.trim(), number: num ? num.textContent.trim() : "" };
		});
		const coach = root.querySelector(".coach .name, .coach");
		const team = root.querySelector(".team-name");
		return {
			team: team ? team.textContent.trim() : "",
			coach: coach ? coach.textContent.trim() : "",
			starters: players("table.starters tr, .starters li"),
			bench: players("table.bench tr, .bench li")
		};
	};
	const home = side(document.querySelector(".lineups .home, .lineup-home"));
	const away = side(document.querySelector(".lineups .away, .lineup-away"));
	if (!home && !away) return null;
	return { home: home, away: away };
})()`

const flatLineupsJS = `(() => {
	const rows = Array.from(document.querySelectorAll(".lineups li, .lineups tr"));
	const players = rows.map(el => {
		const link = el.querySelector("a[href*='/jogadores/']");
		let sourceId = 0;
		if (link) {
			const m = link.getAttribute("href").match(/\/jogadores\/(\d+)/);
			if (m) sourceId = parseInt(m[1], 10);
		}
		return { sourceId: sourceId, name: el.textContent.trim(), number: "" };
	}).filter(p => p.name);
	return players;
})()`

func lineupStrategies() []strategy {
	return []strategy{
		{name: "pitch-tables", run: pitchLineups},
		{name: "flat-split", run: flatLineups},
	}
}

func pitchLineups(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var payload *lineupPayload
	if err := decodePayload(ctx, ev, pitchLineupsJS, &payload); err != nil {
		return err
	}
	if payload == nil || payload.Home == nil || payload.Away == nil {
		return fmt.Errorf("%w: missing a lineup side", errFacetMiss)
	}
	if len(payload.Home.Starters) == 0 || len(payload.Away.Starters) == 0 {
		return fmt.Errorf("%w: empty starters", errFacetMiss)
	}
	rec.HomeLineup = convertSide(payload.Home, rec.HomeTeam)
	rec.AwayLineup = convertSide(payload.Away, rec.AwayTeam)
	return nil
}

// flatLineups handles the plain-list variant: one flat run of players with no
// side markers. Exactly 22 entries split evenly, anything else is unusable.
func flatLineups(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	var players []lineupPlayer
	if err := decodePayload(ctx, ev, flatLineupsJS, &players); err != nil {
		return err
	}
	if len(players) != 22 {
		return fmt.Errorf("%w: %d players in flat list", errFacetMiss, len(players))
	}
	rec.HomeLineup = scrape.Lineup{TeamName: rec.HomeTeam, Starters: convertPlayers(players[:11])}
	rec.AwayLineup = scrape.Lineup{TeamName: rec.AwayTeam, Starters: convertPlayers(players[11:])}
	return nil
}

func convertSide(side *lineupSide, fallbackTeam string) scrape.Lineup {
	team := strings.TrimSpace(side.Team)
	if team == "" {
		team = fallbackTeam
	}
	return scrape.Lineup{
		TeamName: team,
		Coach:    StripLabel(side.Coach),
		Starters: convertPlayers(side.Starters),
		Bench:    convertPlayers(side.Bench),
	}
}

func convertPlayers(players []lineupPlayer) []scrape.PlayerEntry {
	out := make([]scrape.PlayerEntry, 0, len(players))
	for _, p := range players {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		out = append(out, scrape.PlayerEntry{
			SourceID: p.SourceID,
			Name:     name,
			Number:   ParseOptionalInt(p.Number),
		})
	}
	return out
}
