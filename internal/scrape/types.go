// Package scrape defines core types shared across the ingestion subsystems.
package scrape

import "time"

// Side identifies which team a page fragment belongs to. The source site lays
// the home team out on the left and the away team on the right; attribution
// always derives from that layout, never from event text order.
type Side string

// Team sides as they appear in extracted fragments.
const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Ratio is a compound stat of the form "12/20 (60%)".
type Ratio struct {
	Count      int     `json:"count"`
	Attempts   int     `json:"attempts"`
	Percentage float64 `json:"percentage"`
}

// EventType classifies timeline entries.
type EventType string

// Timeline event types recognized by the extractor.
const (
	EventGoal         EventType = "goal"
	EventOwnGoal      EventType = "own_goal"
	EventPenaltyGoal  EventType = "penalty_goal"
	EventYellowCard   EventType = "yellow_card"
	EventRedCard      EventType = "red_card"
	EventSecondYellow EventType = "second_yellow"
	EventSubstitution EventType = "substitution"
)

// Event is one timeline entry (goal, card, substitution).
type Event struct {
	Type            EventType `json:"type"`
	Minute          int       `json:"minute"`
	StoppageMinute  int       `json:"stoppage_minute,omitempty"`
	Period          int       `json:"period"`
	Side            Side      `json:"side"`
	Player          string    `json:"player,omitempty"`
	SecondaryPlayer string    `json:"secondary_player,omitempty"`
	Detail          string    `json:"detail,omitempty"`
}

// PlayerEntry is the reconciled per-player record within a lineup. Fields are
// populated by up to three independently extracted facets (lineup listing,
// visual ratings, detailed stat modal); reconciliation never lets a
// lower-priority facet overwrite a value a higher-priority one produced.
type PlayerEntry struct {
	SourceID    int64          `json:"source_id,omitempty"`
	Name        string         `json:"name"`
	Number      *int           `json:"number,omitempty"`
	Rating      *float64       `json:"rating,omitempty"`
	RatingGrade string         `json:"rating_grade,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
}

// Lineup is one team's starters, bench and coach.
type Lineup struct {
	TeamName string        `json:"team_name,omitempty"`
	Coach    string        `json:"coach,omitempty"`
	Starters []PlayerEntry `json:"starters"`
	Bench    []PlayerEntry `json:"bench"`
}

// MatchRecord is the canonical nested record produced by extraction and
// consumed by persistence. Anything outside the fixed schema lands in Extra.
type MatchRecord struct {
	LeagueSlug string     `json:"league"`
	Year       int        `json:"year"`
	Round      int        `json:"round"`
	HomeTeam   string     `json:"home_team"`
	AwayTeam   string     `json:"away_team"`
	HomeScore  int        `json:"home_score"`
	AwayScore  int        `json:"away_score"`
	HomeHT     *int       `json:"home_score_halftime,omitempty"`
	AwayHT     *int       `json:"away_score_halftime,omitempty"`
	KickoffAt  *time.Time `json:"kickoff_at,omitempty"`
	Venue      string     `json:"venue,omitempty"`
	Referee    string     `json:"referee,omitempty"`
	Attendance *int       `json:"attendance,omitempty"`
	SourceURL  string     `json:"source_url"`
	Status     string     `json:"status"`

	HomeStats map[string]any `json:"stats_home,omitempty"`
	AwayStats map[string]any `json:"stats_away,omitempty"`

	Events     []Event `json:"events,omitempty"`
	HomeLineup Lineup  `json:"lineup_home"`
	AwayLineup Lineup  `json:"lineup_away"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Complete reports whether the record carries the minimum trusted core.
func (m *MatchRecord) Complete() bool {
	return m.HomeTeam != "" && m.AwayTeam != "" && m.SourceURL != ""
}
