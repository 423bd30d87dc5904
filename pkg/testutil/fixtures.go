// Package testutil provides shared match-history builders for tests.
package testutil

import (
	"time"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// WinningRun returns n home results where team scores 2-3 and concedes
// at most 1, spaced a week apart working back from before.
func WinningRun(team string, n int, before time.Time) []models.MatchResult {
	out := make([]models.MatchResult, n)
	for i := range out {
		out[i] = models.MatchResult{
			HomeTeam:  team,
			AwayTeam:  "Opponent",
			HomeGoals: 2 + i%2,
			AwayGoals: i % 2,
			Date:      before.AddDate(0, 0, -7*(i+1)),
		}
	}
	return out
}

// LosingRun returns n away results where team concedes 2 and scores at
// most 1, spaced a week apart working back from before.
func LosingRun(team string, n int, before time.Time) []models.MatchResult {
	out := make([]models.MatchResult, n)
	for i := range out {
		out[i] = models.MatchResult{
			HomeTeam:  "Opponent",
			AwayTeam:  team,
			HomeGoals: 2,
			AwayGoals: i % 2,
			Date:      before.AddDate(0, 0, -7*(i+1)),
		}
	}
	return out
}

// OneSidedH2H returns n meetings that home won by the same scoreline,
// most recent first, spaced four months apart working back from before.
func OneSidedH2H(home, away string, homeGoals, awayGoals, n int, before time.Time) []models.MatchResult {
	out := make([]models.MatchResult, n)
	for i := range out {
		out[i] = models.MatchResult{
			HomeTeam:  home,
			AwayTeam:  away,
			HomeGoals: homeGoals,
			AwayGoals: awayGoals,
			Date:      before.AddDate(0, -4*(i+1), 0),
		}
	}
	return out
}

// PremierLeagueFixture returns an unstarted Arsenal v Chelsea fixture
// with the real provider league and team ids.
func PremierLeagueFixture(id int, kickoff time.Time) models.Fixture {
	return models.Fixture{
		FixtureID:   id,
		LeagueID:    39,
		HomeTeam:    "Arsenal",
		AwayTeam:    "Chelsea",
		HomeTeamID:  42,
		AwayTeamID:  49,
		KickoffTime: kickoff,
		Status:      "NS",
	}
}
