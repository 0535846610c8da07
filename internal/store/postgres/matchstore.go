// Package postgres persists reconciled match records.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brstats/statshub/internal/scrape"
)

//go:embed schema.sql
var schemaSQL string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// MatchStore writes match records into Postgres. Every SaveMatch runs in one
// transaction so a failed page never leaves a half-written match behind.
type MatchStore struct {
	pool dbPool
}

// New connects a pool and builds the store.
func New(ctx context.Context, cfg Config) (*MatchStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &MatchStore{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*MatchStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &MatchStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *MatchStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate applies the schema. Statements are idempotent.
func (s *MatchStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed upserts the supported league catalog. Seasons reference leagues by
// slug, so seeding must run before the first match is saved; Migrate and Seed
// together make a fresh database ready for jobs.
func (s *MatchStore) Seed(ctx context.Context, leagues []scrape.League) error {
	for _, l := range leagues {
		_, err := s.pool.Exec(ctx, `
INSERT INTO leagues (slug, name, num_rounds) VALUES ($1, $2, $3)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, num_rounds = EXCLUDED.num_rounds`,
			l.Slug, l.Name, l.NumRounds)
		if err != nil {
			return fmt.Errorf("seed league %q: %w", l.Slug, err)
		}
	}
	return nil
}

// Exists reports whether a match for the source URL was already persisted.
func (s *MatchStore) Exists(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE source_url = $1)`, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("match exists: %w", err)
	}
	return exists, nil
}

// LastRound returns the highest persisted round for a season, zero when the
// season has no matches yet.
func (s *MatchStore) LastRound(ctx context.Context, league string, year int) (int, error) {
	var round int
	err := s.pool.QueryRow(ctx, `
SELECT COALESCE(MAX(m.round), 0)
FROM matches m
JOIN seasons s ON s.id = m.season_id
WHERE s.league_slug = $1 AND s.year = $2`, league, year,
	).Scan(&round)
	if err != nil {
		return 0, fmt.Errorf("last round: %w", err)
	}
	return round, nil
}

// SaveMatch upserts the full record: dimension rows get-or-created, the match
// row keyed by (season, round, home, away) with metadata merged into any
// previous value, stats and lineup JSONB merged key-wise, events rewritten.
// Saving the same record twice leaves the database unchanged.
func (s *MatchStore) SaveMatch(ctx context.Context, rec *scrape.MatchRecord) (err error) {
	if !rec.Complete() {
		return fmt.Errorf("record for %s is missing its identity core", rec.SourceURL)
	}

	var tx pgx.Tx
	tx, err = s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	matchID, err := s.upsertMatch(ctx, tx, rec)
	if err != nil {
		return err
	}
	if err := s.saveStats(ctx, tx, matchID, rec); err != nil {
		return err
	}
	if err := s.saveEvents(ctx, tx, matchID, rec.Events); err != nil {
		return err
	}
	if err := s.saveLineups(ctx, tx, matchID, rec); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *MatchStore) upsertMatch(ctx context.Context, tx pgx.Tx, rec *scrape.MatchRecord) (int64, error) {
	var seasonID int64
	err := tx.QueryRow(ctx, `
INSERT INTO seasons (league_slug, year) VALUES ($1, $2)
ON CONFLICT (league_slug, year) DO UPDATE SET year = EXCLUDED.year
RETURNING id`, rec.LeagueSlug, rec.Year).Scan(&seasonID)
	if err != nil {
		return 0, fmt.Errorf("upsert season: %w", err)
	}

	homeID, err := upsertNamed(ctx, tx, "teams", rec.HomeTeam)
	if err != nil {
		return 0, err
	}
	awayID, err := upsertNamed(ctx, tx, "teams", rec.AwayTeam)
	if err != nil {
		return 0, err
	}

	var venueID, refereeID *int64
	if rec.Venue != "" {
		id, err := upsertNamed(ctx, tx, "venues", rec.Venue)
		if err != nil {
			return 0, err
		}
		venueID = &id
	}
	if rec.Referee != "" {
		id, err := upsertNamed(ctx, tx, "referees", rec.Referee)
		if err != nil {
			return 0, err
		}
		refereeID = &id
	}

	metadata, err := marshalJSONB(rec.Extra)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var matchID int64
	err = tx.QueryRow(ctx, `
INSERT INTO matches (
	season_id, round, home_team_id, away_team_id,
	home_score, away_score, home_ht_score, away_ht_score,
	kickoff_at, venue_id, referee_id, attendance,
	status, source_url, metadata
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (season_id, round, home_team_id, away_team_id) DO UPDATE SET
	home_score    = EXCLUDED.home_score,
	away_score    = EXCLUDED.away_score,
	home_ht_score = COALESCE(EXCLUDED.home_ht_score, matches.home_ht_score),
	away_ht_score = COALESCE(EXCLUDED.away_ht_score, matches.away_ht_score),
	kickoff_at    = COALESCE(EXCLUDED.kickoff_at, matches.kickoff_at),
	venue_id      = COALESCE(EXCLUDED.venue_id, matches.venue_id),
	referee_id    = COALESCE(EXCLUDED.referee_id, matches.referee_id),
	attendance    = COALESCE(EXCLUDED.attendance, matches.attendance),
	status        = EXCLUDED.status,
	source_url    = EXCLUDED.source_url,
	metadata      = matches.metadata || EXCLUDED.metadata,
	updated_at    = now()
RETURNING id`,
		seasonID, rec.Round, homeID, awayID,
		rec.HomeScore, rec.AwayScore, rec.HomeHT, rec.AwayHT,
		rec.KickoffAt, venueID, refereeID, rec.Attendance,
		rec.Status, rec.SourceURL, metadata,
	).Scan(&matchID)
	if err != nil {
		return 0, fmt.Errorf("upsert match: %w", err)
	}
	return matchID, nil
}

func (s *MatchStore) saveStats(ctx context.Context, tx pgx.Tx, matchID int64, rec *scrape.MatchRecord) error {
	for _, side := range []struct {
		side  scrape.Side
		stats map[string]any
	}{
		{scrape.SideHome, rec.HomeStats},
		{scrape.SideAway, rec.AwayStats},
	} {
		if len(side.stats) == 0 {
			continue
		}
		payload, err := marshalJSONB(side.stats)
		if err != nil {
			return fmt.Errorf("marshal %s stats: %w", side.side, err)
		}
		// merged, not replaced: a rescrape that recovered fewer stat rows
		// must not wipe fields an earlier pass already captured
		_, err = tx.Exec(ctx, `
INSERT INTO match_stats (match_id, side, stats) VALUES ($1, $2, $3)
ON CONFLICT (match_id, side) DO UPDATE SET stats = match_stats.stats || EXCLUDED.stats`,
			matchID, string(side.side), payload)
		if err != nil {
			return fmt.Errorf("upsert %s stats: %w", side.side, err)
		}
	}
	return nil
}

// saveEvents rewrites the timeline wholesale. Events carry no natural key, so
// delete-and-insert is the only way a rescrape stays idempotent.
func (s *MatchStore) saveEvents(ctx context.Context, tx pgx.Tx, matchID int64, events []scrape.Event) error {
	if _, err := tx.Exec(ctx, `DELETE FROM match_events WHERE match_id = $1`, matchID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for _, ev := range events {
		_, err := tx.Exec(ctx, `
INSERT INTO match_events (match_id, event_type, minute, stoppage_minute, period, side, player, secondary, detail)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			matchID, string(ev.Type), ev.Minute, ev.StoppageMinute, ev.Period,
			string(ev.Side), ev.Player, ev.SecondaryPlayer, ev.Detail)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *MatchStore) saveLineups(ctx context.Context, tx pgx.Tx, matchID int64, rec *scrape.MatchRecord) error {
	for _, side := range []struct {
		lineup *scrape.Lineup
		team   string
	}{
		{&rec.HomeLineup, rec.HomeTeam},
		{&rec.AwayLineup, rec.AwayTeam},
	} {
		if len(side.lineup.Starters) == 0 && len(side.lineup.Bench) == 0 {
			continue
		}
		teamID, err := upsertNamed(ctx, tx, "teams", side.team)
		if err != nil {
			return err
		}
		if err := s.saveEntries(ctx, tx, matchID, teamID, side.lineup.Starters, true); err != nil {
			return err
		}
		if err := s.saveEntries(ctx, tx, matchID, teamID, side.lineup.Bench, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchStore) saveEntries(ctx context.Context, tx pgx.Tx, matchID, teamID int64, entries []scrape.PlayerEntry, starter bool) error {
	for _, entry := range entries {
		playerID, err := upsertPlayer(ctx, tx, entry)
		if err != nil {
			return err
		}
		stats, err := marshalJSONB(entry.Stats)
		if err != nil {
			return fmt.Errorf("marshal player stats: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO lineup_entries (match_id, player_id, team_id, starter, shirt_number, rating, rating_grade, stats)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (match_id, player_id) DO UPDATE SET
	team_id      = EXCLUDED.team_id,
	starter      = EXCLUDED.starter,
	shirt_number = COALESCE(EXCLUDED.shirt_number, lineup_entries.shirt_number),
	rating       = COALESCE(EXCLUDED.rating, lineup_entries.rating),
	rating_grade = EXCLUDED.rating_grade,
	stats        = lineup_entries.stats || EXCLUDED.stats`,
			matchID, playerID, teamID, starter, entry.Number, entry.Rating, entry.RatingGrade, stats)
		if err != nil {
			return fmt.Errorf("upsert lineup entry: %w", err)
		}
	}
	return nil
}

func upsertNamed(ctx context.Context, tx pgx.Tx, table, name string) (int64, error) {
	var id int64
	query := fmt.Sprintf(`
INSERT INTO %s (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, table)
	if err := tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s %q: %w", table, name, err)
	}
	return id, nil
}

func upsertPlayer(ctx context.Context, tx pgx.Tx, entry scrape.PlayerEntry) (int64, error) {
	var id int64
	if entry.SourceID > 0 {
		err := tx.QueryRow(ctx, `
INSERT INTO players (source_id, name, normalized_name) VALUES ($1, $2, $3)
ON CONFLICT (source_id) DO UPDATE SET name = EXCLUDED.name, normalized_name = EXCLUDED.normalized_name
RETURNING id`, entry.SourceID, entry.Name, scrape.NormalizeName(entry.Name)).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("upsert player %q: %w", entry.Name, err)
		}
		return id, nil
	}
	err := tx.QueryRow(ctx, `
INSERT INTO players (name, normalized_name) VALUES ($1, $2)
ON CONFLICT (normalized_name) WHERE source_id IS NULL DO UPDATE SET name = players.name
RETURNING id`, entry.Name, scrape.NormalizeName(entry.Name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert player %q: %w", entry.Name, err)
	}
	return id, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}
