package models

import "time"

// Fixture is a provider-side scheduled match before normalization.
type Fixture struct {
	FixtureID   int
	LeagueID    int
	LeagueKey   string
	HomeTeam    string
	AwayTeam    string
	HomeTeamID  int
	AwayTeamID  int
	KickoffTime time.Time
	Status      string
}

// MatchOdds is one bookmaker price for a (market, selection) pair.
type MatchOdds struct {
	MatchID     string
	Market      string
	Selection   string
	Price       float64 // decimal odds
	Bookmaker   string
	LastUpdate  time.Time
	CommenceTime time.Time
}

// InjuryReport summarizes availability information for one team.
type InjuryReport struct {
	TeamID    int
	TeamName  string
	PlayersOut int
	KeyPlayersOut int
	FetchedAt time.Time
}

// LineupStatus reflects whether confirmed lineups were published.
type LineupStatus struct {
	FixtureID int
	Confirmed bool
	FetchedAt time.Time
}

// QuotaStats is a read-only snapshot of one upstream's daily budget.
type QuotaStats struct {
	APIName         string
	RequestCount    int
	QuotaLimit      int
	Remaining       int
	LastResetDate   string
	LastRequestTime *time.Time
}
