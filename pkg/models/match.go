package models

import "time"

// Match represents a scheduled fixture between two teams.
// Immutable once scheduled; downstream entities reference it by MatchID.
type Match struct {
	MatchID      string
	FixtureID    int // provider fixture id, 0 when unknown
	HomeTeam     string
	AwayTeam     string
	HomeTeamID   int
	AwayTeamID   int
	LeagueKey    string // e.g. "soccer_epl"
	KickoffTime  time.Time
}

// MatchResult is a single completed game used for form and H2H analysis.
type MatchResult struct {
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	Date      time.Time
}

// TeamForm aggregates a team's recent results. It is a derived view,
// recomputed per evaluation cycle and never persisted.
type TeamForm struct {
	TeamName       string
	TeamID         int
	Games          []MatchResult
	GoalsPerGame   float64
	ConcededPerGame float64
	WinRate        float64
	CleanSheetRate float64
}

// SampleSize returns the number of games backing this form window.
func (f TeamForm) SampleSize() int {
	return len(f.Games)
}

// HeadToHeadRecord holds prior meetings between two teams,
// ordered most-recent-first. Read-only input to the analyzers.
type HeadToHeadRecord struct {
	TeamA    string
	TeamB    string
	Meetings []MatchResult
}

// SideAverages returns the average goals scored by each named side
// across all meetings, regardless of venue.
func (r HeadToHeadRecord) SideAverages() (avgA, avgB float64) {
	if len(r.Meetings) == 0 {
		return 0, 0
	}
	var a, b float64
	for _, m := range r.Meetings {
		ga, gb := r.GoalsFor(m)
		a += float64(ga)
		b += float64(gb)
	}
	n := float64(len(r.Meetings))
	return a / n, b / n
}

// GoalsFor maps a meeting's scoreline onto (TeamA goals, TeamB goals),
// accounting for which side was at home that day.
func (r HeadToHeadRecord) GoalsFor(m MatchResult) (goalsA, goalsB int) {
	if m.HomeTeam == r.TeamA {
		return m.HomeGoals, m.AwayGoals
	}
	return m.AwayGoals, m.HomeGoals
}
