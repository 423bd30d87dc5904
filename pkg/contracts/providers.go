package contracts

import (
	"context"
	"time"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// FixtureProvider is the single interface through which the engine reads
// fixtures, team statistics, and availability data. All implementations
// must route calls through the request budget manager.
type FixtureProvider interface {
	// FixturesByDate retrieves fixtures scheduled on the given day.
	FixturesByDate(ctx context.Context, day time.Time) ([]models.Fixture, error)

	// RecentResults retrieves a team's last n completed games, most recent first.
	RecentResults(ctx context.Context, teamID int, n int) ([]models.MatchResult, error)

	// HeadToHead retrieves prior meetings between two teams, most recent first.
	HeadToHead(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error)

	// Injuries retrieves the current injury report for a team.
	Injuries(ctx context.Context, teamID int) (*models.InjuryReport, error)

	// Lineups reports whether confirmed lineups exist for a fixture.
	Lineups(ctx context.Context, fixtureID int) (*models.LineupStatus, error)
}

// OddsProvider exposes per-event bookmaker odds for match-result and
// totals markets.
type OddsProvider interface {
	// MatchOdds retrieves current bookmaker odds for a league's upcoming events.
	MatchOdds(ctx context.Context, leagueKey string) ([]models.MatchOdds, error)
}
