package h2h

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

func meetingsFromScores(teamA, teamB string, scores [][2]int) []models.MatchResult {
	out := make([]models.MatchResult, len(scores))
	day := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	for i, s := range scores {
		out[i] = models.MatchResult{
			HomeTeam:  teamA,
			AwayTeam:  teamB,
			HomeGoals: s[0],
			AwayGoals: s[1],
			Date:      day.AddDate(0, -i*3, 0),
		}
	}
	return out
}

func TestInsufficientHistory(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA:    "Arsenal",
		TeamB:    "Brentford",
		Meetings: meetingsFromScores("Arsenal", "Brentford", [][2]int{{2, 1}, {1, 1}}),
	}

	a := Analyze(record)
	assert.Equal(t, LevelNone, a.Level)
	assert.Equal(t, minimalWeight, a.RecommendedWeight)
	assert.Empty(t, a.DominantTeam)
}

func TestExtremeDominance(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA: "Man City",
		TeamB: "Burnley",
		Meetings: meetingsFromScores("Man City", "Burnley", [][2]int{
			{3, 0}, {4, 1}, {2, 0}, {3, 1}, {5, 0},
		}),
	}

	a := Analyze(record)
	assert.Equal(t, LevelExtreme, a.Level)
	assert.Equal(t, "Man City", a.DominantTeam)
	assert.InDelta(t, extremeWeight, a.RecommendedWeight, 1e-9)
	assert.Equal(t, float64(95), a.PatternConfidence)
	assert.Equal(t, "5-0-0", a.RecordA)
}

func TestBalancedPairing(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA: "Everton",
		TeamB: "Fulham",
		Meetings: meetingsFromScores("Everton", "Fulham", [][2]int{
			{1, 0}, {0, 1}, {1, 1}, {2, 1}, {0, 2},
		}),
	}

	a := Analyze(record)
	assert.Equal(t, LevelBalanced, a.Level)
	assert.Empty(t, a.DominantTeam)
	assert.InDelta(t, balancedWeight, a.RecommendedWeight, 1e-9)
}

// Weight must not decrease as dominance strengthens.
func TestWeightMonotoneInDominance(t *testing.T) {
	scenarios := [][][2]int{
		{{1, 0}, {0, 1}, {1, 1}, {2, 1}, {0, 2}}, // balanced
		{{1, 0}, {2, 1}, {0, 1}, {1, 1}, {1, 0}}, // moderate
		{{2, 0}, {2, 1}, {1, 0}, {0, 1}, {2, 1}}, // strong
		{{3, 0}, {4, 1}, {2, 0}, {3, 1}, {5, 0}}, // extreme
	}

	prev := -1.0
	for i, scores := range scenarios {
		record := models.HeadToHeadRecord{
			TeamA:    "A",
			TeamB:    "B",
			Meetings: meetingsFromScores("A", "B", scores),
		}
		a := Analyze(record)
		require.GreaterOrEqual(t, a.RecommendedWeight, prev, "scenario %d", i)
		prev = a.RecommendedWeight
	}
}

func TestTrendReversalScalesWeight(t *testing.T) {
	// TeamA won all of meetings 4-7 but none of the last 3.
	scores := [][2]int{
		{0, 2}, {1, 1}, {0, 1}, // recent: no A wins
		{3, 0}, {2, 1}, {2, 0}, {1, 0}, // earlier: A dominant
	}
	record := models.HeadToHeadRecord{
		TeamA:    "Leeds",
		TeamB:    "Norwich",
		Meetings: meetingsFromScores("Leeds", "Norwich", scores),
	}

	a := Analyze(record)
	assert.Equal(t, TrendReversing, a.Trend)

	// The last-5 window classifies as balanced, so the reversal scaling
	// must pull the weight below the balanced baseline.
	assert.Less(t, a.RecommendedWeight, balancedWeight)
}

func TestScorePatterns(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA: "Spurs",
		TeamB: "Newcastle",
		Meetings: meetingsFromScores("Spurs", "Newcastle", [][2]int{
			{3, 2}, {2, 2}, {4, 1}, {1, 3}, {2, 1},
		}),
	}

	a := Analyze(record)
	assert.InDelta(t, 4.2, a.Patterns.AvgTotalGoals, 1e-9)
	assert.InDelta(t, 1.0, a.Patterns.BTTSRate, 1e-9)
	assert.True(t, a.Patterns.HighScoring)
	assert.Equal(t, 0, a.Patterns.CleanSheets)
}

func TestVenueOrientationInGoalsMapping(t *testing.T) {
	// Two meetings with TeamA away; dominance must follow the team,
	// not the home column.
	day := time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC)
	record := models.HeadToHeadRecord{
		TeamA: "Liverpool",
		TeamB: "West Ham",
		Meetings: []models.MatchResult{
			{HomeTeam: "West Ham", AwayTeam: "Liverpool", HomeGoals: 0, AwayGoals: 3, Date: day},
			{HomeTeam: "Liverpool", AwayTeam: "West Ham", HomeGoals: 2, AwayGoals: 0, Date: day.AddDate(0, -3, 0)},
			{HomeTeam: "West Ham", AwayTeam: "Liverpool", HomeGoals: 1, AwayGoals: 4, Date: day.AddDate(0, -6, 0)},
			{HomeTeam: "Liverpool", AwayTeam: "West Ham", HomeGoals: 3, AwayGoals: 1, Date: day.AddDate(0, -9, 0)},
		},
	}

	a := Analyze(record)
	assert.Equal(t, "Liverpool", a.DominantTeam)
	assert.Equal(t, LevelExtreme, a.Level)
}

func TestEmpiricalMatrixNormalized(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA: "A",
		TeamB: "B",
		Meetings: meetingsFromScores("A", "B", [][2]int{
			{2, 1}, {2, 1}, {0, 0}, {1, 3},
		}),
	}

	matrix := EmpiricalMatrix(record, true, 10)
	require.NotNil(t, matrix)

	var sum float64
	for h := range matrix {
		for a := range matrix[h] {
			sum += matrix[h][a]
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.5, matrix[2][1], 1e-9)
	assert.InDelta(t, 0.25, matrix[0][0], 1e-9)
	assert.InDelta(t, 0.25, matrix[1][3], 1e-9)
}

func TestEmpiricalMatrixAwayOrientation(t *testing.T) {
	record := models.HeadToHeadRecord{
		TeamA:    "A",
		TeamB:    "B",
		Meetings: meetingsFromScores("A", "B", [][2]int{{2, 0}}),
	}

	// Upcoming match has TeamB at home, so the 2-0 becomes 0-2.
	matrix := EmpiricalMatrix(record, false, 10)
	require.NotNil(t, matrix)
	assert.InDelta(t, 1.0, matrix[0][2], 1e-9)
}
