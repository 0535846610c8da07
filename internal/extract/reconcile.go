package extract

import "github.com/brstats/statshub/internal/scrape"

// Player identity is the source id when the page exposes one, otherwise the
// normalized name. Facets disagree on spelling more often than on ids.
type playerKey struct {
	sourceID int64
	name     string
}

func keyFor(sourceID int64, name string) playerKey {
	if sourceID > 0 {
		return playerKey{sourceID: sourceID}
	}
	return playerKey{name: scrape.NormalizeName(name)}
}

// findPlayer locates a lineup entry by source id, falling back to the
// normalized name. Players mentioned by a facet but absent from both lineups
// return nil and are dropped.
func findPlayer(rec *scrape.MatchRecord, sourceID int64, name string) *scrape.PlayerEntry {
	want := keyFor(sourceID, name)
	normalized := scrape.NormalizeName(name)
	for _, lineup := range []*scrape.Lineup{&rec.HomeLineup, &rec.AwayLineup} {
		for _, group := range [][]scrape.PlayerEntry{lineup.Starters, lineup.Bench} {
			for i := range group {
				entry := &group[i]
				if keyFor(entry.SourceID, entry.Name) == want {
					return entry
				}
				if sourceID > 0 && entry.SourceID == 0 && scrape.NormalizeName(entry.Name) == normalized {
					entry.SourceID = sourceID
					return entry
				}
			}
		}
	}
	return nil
}

// reconcilePlayers deduplicates each lineup so every player appears exactly
// once. Earlier entries win; later duplicates only fill fields the first
// occurrence left empty.
func reconcilePlayers(rec *scrape.MatchRecord) {
	for _, lineup := range []*scrape.Lineup{&rec.HomeLineup, &rec.AwayLineup} {
		seen := map[playerKey]*scrape.PlayerEntry{}
		lineup.Starters = dedupe(lineup.Starters, seen)
		lineup.Bench = dedupe(lineup.Bench, seen)
	}
}

func dedupe(entries []scrape.PlayerEntry, seen map[playerKey]*scrape.PlayerEntry) []scrape.PlayerEntry {
	out := entries[:0]
	for _, entry := range entries {
		key := keyFor(entry.SourceID, entry.Name)
		if first, ok := seen[key]; ok {
			mergeEntry(first, entry)
			continue
		}
		out = append(out, entry)
		seen[key] = &out[len(out)-1]
	}
	return out
}

// mergeEntry copies fields from the duplicate into the kept entry without
// overwriting anything already set.
func mergeEntry(dst *scrape.PlayerEntry, src scrape.PlayerEntry) {
	if dst.SourceID == 0 {
		dst.SourceID = src.SourceID
	}
	if dst.Number == nil {
		dst.Number = src.Number
	}
	if dst.Rating == nil && dst.RatingGrade == "" {
		dst.Rating = src.Rating
		dst.RatingGrade = src.RatingGrade
	}
	for k, v := range src.Stats {
		if dst.Stats == nil {
			dst.Stats = map[string]any{}
		}
		if _, exists := dst.Stats[k]; !exists {
			dst.Stats[k] = v
		}
	}
}
