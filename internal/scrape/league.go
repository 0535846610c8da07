package scrape

import "fmt"

// League describes a supported competition. RoundPath is the listing-page
// path for one round, relative to the configured site base URL.
type League struct {
	Slug      string
	Name      string
	NumRounds int
	roundPath string
}

var leagues = []League{
	{Slug: "brasileirao-serie-a", Name: "Brasileirão Série A", NumRounds: 38, roundPath: "/campeonato/brasileirao-serie-a/%d/rodada/%d"},
	{Slug: "brasileirao-serie-b", Name: "Brasileirão Série B", NumRounds: 38, roundPath: "/campeonato/brasileirao-serie-b/%d/rodada/%d"},
	{Slug: "copa-do-brasil", Name: "Copa do Brasil", NumRounds: 14, roundPath: "/campeonato/copa-do-brasil/%d/fase/%d"},
}

// LeagueBySlug looks up a supported league.
func LeagueBySlug(slug string) (League, bool) {
	for _, l := range leagues {
		if l.Slug == slug {
			return l, true
		}
	}
	return League{}, false
}

// Leagues returns the supported league catalog.
func Leagues() []League {
	out := make([]League, len(leagues))
	copy(out, leagues)
	return out
}

// RoundURL builds the absolute listing-page URL for a round.
func (l League) RoundURL(baseURL string, year, round int) string {
	return baseURL + fmt.Sprintf(l.roundPath, year, round)
}
