package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/brstats/statshub/internal/scrape"
)

func sampleRecord() *scrape.MatchRecord {
	return &scrape.MatchRecord{
		LeagueSlug: "brasileirao-serie-a",
		Year:       2025,
		Round:      3,
		HomeTeam:   "Flamengo",
		AwayTeam:   "Palmeiras",
		HomeScore:  2,
		AwayScore:  1,
		Venue:      "Maracanã",
		SourceURL:  "https://example.test/partidas/1001",
		Status:     "finished",
		HomeStats:  map[string]any{"posse_de_bola": 58.0},
		AwayStats:  map[string]any{"posse_de_bola": 42.0},
		Events: []scrape.Event{
			{Type: scrape.EventGoal, Minute: 23, Period: 1, Side: scrape.SideHome, Player: "Pedro"},
		},
		HomeLineup: scrape.Lineup{
			TeamName: "Flamengo",
			Starters: []scrape.PlayerEntry{{SourceID: 101, Name: "Rossi"}},
		},
	}
}

func expectSave(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO seasons").
		WithArgs("brasileirao-serie-a", 2025).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO teams").
		WithArgs("Flamengo").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("INSERT INTO teams").
		WithArgs("Palmeiras").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("INSERT INTO venues").
		WithArgs("Maracanã").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("INSERT INTO matches").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec(`(?s)INSERT INTO match_stats.*match_stats\.stats \|\| EXCLUDED\.stats`).
		WithArgs(int64(100), "home", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)INSERT INTO match_stats.*match_stats\.stats \|\| EXCLUDED\.stats`).
		WithArgs(int64(100), "away", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM match_events").
		WithArgs(int64(100)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO match_events").
		WithArgs(int64(100), "goal", 23, 0, 1, "home", "Pedro", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO teams").
		WithArgs("Flamengo").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("INSERT INTO players").
		WithArgs(int64(101), "Rossi", "rossi").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(500)))
	mock.ExpectExec("INSERT INTO lineup_entries").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestSaveMatch_SingleTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	expectSave(mock)
	require.NoError(t, store.SaveMatch(context.Background(), sampleRecord()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMatch_RerunUsesUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	// the statement set is identical on a rescrape; every write is an upsert
	// or a scoped rewrite, so running twice converges instead of duplicating
	expectSave(mock)
	expectSave(mock)
	require.NoError(t, store.SaveMatch(context.Background(), sampleRecord()))
	require.NoError(t, store.SaveMatch(context.Background(), sampleRecord()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMatch_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO seasons").
		WithArgs("brasileirao-serie-a", 2025).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err = store.SaveMatch(context.Background(), sampleRecord())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMatch_RejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	rec := sampleRecord()
	rec.HomeTeam = ""
	require.Error(t, store.SaveMatch(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedLeagues(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	leagues := scrape.Leagues()
	require.NotEmpty(t, leagues)
	for _, l := range leagues {
		mock.ExpectExec("INSERT INTO leagues").
			WithArgs(l.Slug, l.Name, l.NumRounds).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.Seed(context.Background(), leagues))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("https://example.test/partidas/1001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "https://example.test/partidas/1001")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastRound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("brasileirao-serie-a", 2025).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(12))

	round, err := store.LastRound(context.Background(), "brasileirao-serie-a", 2025)
	require.NoError(t, err)
	require.Equal(t, 12, round)
	require.NoError(t, mock.ExpectationsWereMet())
}
