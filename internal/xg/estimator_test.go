package xg

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func formWith(team string, games int, gpg, cpg, winRate float64) models.TeamForm {
	results := make([]models.MatchResult, games)
	for i := range results {
		results[i] = models.MatchResult{
			HomeTeam: team,
			Date:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -7*i),
		}
	}
	return models.TeamForm{
		TeamName:        team,
		Games:           results,
		GoalsPerGame:    gpg,
		ConcededPerGame: cpg,
		WinRate:         winRate,
	}
}

func h2hWith(teamA, teamB string, scores [][2]int) models.HeadToHeadRecord {
	meetings := make([]models.MatchResult, len(scores))
	for i, s := range scores {
		meetings[i] = models.MatchResult{
			HomeTeam:  teamA,
			AwayTeam:  teamB,
			HomeGoals: s[0],
			AwayGoals: s[1],
		}
	}
	return models.HeadToHeadRecord{TeamA: teamA, TeamB: teamB, Meetings: meetings}
}

func TestEstimateDeterministicWithFixedNoise(t *testing.T) {
	est := NewEstimator(FixedNoise{Value: 1.0}, nil, testLogger())
	match := models.Match{MatchID: "m1", HomeTeam: "Arsenal", AwayTeam: "Chelsea"}
	homeForm := formWith("Arsenal", 6, 2.0, 1.0, 0.6)
	awayForm := formWith("Chelsea", 6, 1.5, 1.5, 0.4)
	h2h := h2hWith("Arsenal", "Chelsea", [][2]int{{2, 1}, {1, 1}, {3, 0}})

	a := est.Estimate(match, homeForm, awayForm, h2h)
	b := est.Estimate(match, homeForm, awayForm, h2h)
	assert.Equal(t, a, b)

	// Hand-computed: h2h side averages A=2.0, B=0.667.
	// homeBase = 2.0*0.6 + 2.0*0.4 = 2.0
	// awayBase = 1.5*0.6 + (2/3)*0.4 = 1.1667
	// homeXG = 2.0 * clamp(2.0-1.5/1.5,...)=1.0 * 1.12 = 2.24
	// awayXG = 1.1667 * clamp(2.0-1.0/1.5,...)=1.3333 / 1.12 = 1.3889
	assert.InDelta(t, 2.24, a.HomeXG, 1e-4)
	assert.InDelta(t, 1.3889, a.AwayXG, 1e-4)
	assert.InDelta(t, a.HomeXG+a.AwayXG, a.TotalXG, 1e-9)

	// The feature vector the regressor trains on rides along.
	assert.Equal(t, 2.0, a.Features.HomeGoalsPerGame)
	assert.Equal(t, 1.5, a.Features.AwayGoalsPerGame)
	assert.InDelta(t, 2.0, a.Features.H2HAvgHomeGoals, 1e-9)
}

func TestNoiseStaysWithinBounds(t *testing.T) {
	noise := NewUniformNoise(42)
	low, high := noise.Bounds()
	for i := 0; i < 1000; i++ {
		f := noise.Factor()
		require.GreaterOrEqual(t, f, low)
		require.LessOrEqual(t, f, high)
	}
}

func TestSparseH2HDropsHistoricalTerm(t *testing.T) {
	est := NewEstimator(FixedNoise{Value: 1.0}, nil, testLogger())
	match := models.Match{MatchID: "m2", HomeTeam: "A", AwayTeam: "B"}
	homeForm := formWith("A", 6, 2.0, 1.5, 0.5)
	awayForm := formWith("B", 6, 1.0, 1.5, 0.3)

	// Two meetings with wild scorelines must not move the estimate.
	sparse := h2hWith("A", "B", [][2]int{{9, 0}, {8, 1}})
	none := models.HeadToHeadRecord{TeamA: "A", TeamB: "B"}

	withSparse := est.Estimate(match, homeForm, awayForm, sparse)
	without := est.Estimate(match, homeForm, awayForm, none)
	assert.Equal(t, without.HomeXG, withSparse.HomeXG)
	assert.Equal(t, without.AwayXG, withSparse.AwayXG)
}

func TestDefensiveFactorClamped(t *testing.T) {
	assert.InDelta(t, defensiveCeil, defensiveFactor(0.0), 1e-9)
	assert.InDelta(t, 1.0, defensiveFactor(1.5), 1e-9)
	assert.InDelta(t, defensiveFloor, defensiveFactor(5.0), 1e-9)
}

func TestEstimatesStayWithinLambdaBounds(t *testing.T) {
	est := NewEstimator(FixedNoise{Value: 1.15}, nil, testLogger())
	match := models.Match{MatchID: "m3", HomeTeam: "A", AwayTeam: "B"}

	// Absurd attacking form must still clamp.
	hot := formWith("A", 6, 9.0, 0.0, 1.0)
	cold := formWith("B", 6, 0.0, 9.0, 0.0)
	out := est.Estimate(match, hot, cold, models.HeadToHeadRecord{TeamA: "A", TeamB: "B"})
	assert.LessOrEqual(t, out.HomeXG, maxLambda)
	assert.GreaterOrEqual(t, out.AwayXG, minLambda)
}

func TestDataSourceTagging(t *testing.T) {
	est := NewEstimator(FixedNoise{Value: 1.0}, nil, testLogger())
	match := models.Match{MatchID: "m4", HomeTeam: "A", AwayTeam: "B"}
	h2h := models.HeadToHeadRecord{TeamA: "A", TeamB: "B"}

	full := est.Estimate(match, formWith("A", 5, 1.5, 1.2, 0.5), formWith("B", 6, 1.2, 1.4, 0.4), h2h)
	assert.Equal(t, models.SourceReal, full.DataSource)

	thin := est.Estimate(match, formWith("A", 5, 1.5, 1.2, 0.5), formWith("B", 3, 1.2, 1.4, 0.4), h2h)
	assert.Equal(t, models.SourceEstimated, thin.DataSource)

	bare := est.Estimate(match, formWith("A", 1, 1.5, 1.2, 0.5), formWith("B", 6, 1.2, 1.4, 0.4), h2h)
	assert.Equal(t, models.SourceSynthetic, bare.DataSource)
}

type stubRegressor struct {
	home, away float64
}

func (s stubRegressor) Fitted() bool { return true }
func (s stubRegressor) Predict(contracts.GoalFeatures) (float64, float64) {
	return s.home, s.away
}

func TestRegressorBlendsHalfAndHalf(t *testing.T) {
	match := models.Match{MatchID: "m5", HomeTeam: "A", AwayTeam: "B"}
	homeForm := formWith("A", 6, 2.0, 1.5, 0.5)
	awayForm := formWith("B", 6, 1.0, 1.5, 0.3)
	h2h := models.HeadToHeadRecord{TeamA: "A", TeamB: "B"}

	base := NewEstimator(FixedNoise{Value: 1.0}, nil, testLogger()).
		Estimate(match, homeForm, awayForm, h2h)
	blended := NewEstimator(FixedNoise{Value: 1.0}, stubRegressor{home: 3.0, away: 0.5}, testLogger()).
		Estimate(match, homeForm, awayForm, h2h)

	assert.True(t, blended.Regressed)
	assert.InDelta(t, (base.HomeXG+3.0)/2, blended.HomeXG, 1e-9)
	assert.InDelta(t, (base.AwayXG+0.5)/2, blended.AwayXG, 1e-9)
}

func TestLeastSquaresRecoversLinearTarget(t *testing.T) {
	reg := NewLeastSquaresRegressor()
	assert.False(t, reg.Fitted())

	// Synthetic targets that are an exact linear function of two features.
	samples := make([]TrainingSample, 0, 40)
	for i := 0; i < 40; i++ {
		f := contracts.GoalFeatures{
			HomeGoalsPerGame:    0.5 + float64(i%7)*0.3,
			HomeConcededPerGame: 0.8 + float64(i%5)*0.25,
			AwayGoalsPerGame:    0.4 + float64(i%6)*0.35,
			AwayConcededPerGame: 1.0 + float64(i%4)*0.2,
			HomeWinRate:         float64(i%10) / 10,
			AwayWinRate:         float64(i%9) / 9,
			H2HAvgHomeGoals:     float64(i%3) * 0.7,
			H2HAvgAwayGoals:     float64(i%8) * 0.2,
		}
		samples = append(samples, TrainingSample{
			Features:  f,
			HomeGoals: 0.3 + 0.9*f.HomeGoalsPerGame + 0.4*f.AwayConcededPerGame,
			AwayGoals: 0.2 + 0.8*f.AwayGoalsPerGame + 0.3*f.HomeConcededPerGame,
		})
	}

	require.True(t, reg.Refit(samples))
	require.True(t, reg.Fitted())

	f := contracts.GoalFeatures{
		HomeGoalsPerGame:    1.8,
		HomeConcededPerGame: 1.1,
		AwayGoalsPerGame:    1.3,
		AwayConcededPerGame: 1.4,
		HomeWinRate:         0.5,
		AwayWinRate:         0.4,
		H2HAvgHomeGoals:     1.2,
		H2HAvgAwayGoals:     0.9,
	}
	home, away := reg.Predict(f)
	assert.InDelta(t, 0.3+0.9*1.8+0.4*1.4, home, 1e-6)
	assert.InDelta(t, 0.2+0.8*1.3+0.3*1.1, away, 1e-6)
}

func TestRefitRefusesThinSample(t *testing.T) {
	reg := NewLeastSquaresRegressor()
	samples := make([]TrainingSample, 10)
	assert.False(t, reg.Refit(samples))
	assert.False(t, reg.Fitted())
}
