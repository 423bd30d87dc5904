// Package xg estimates per-side expected goals from recent form,
// head-to-head history and a bounded variance factor.
package xg

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	formWeight = 0.6
	h2hWeight  = 0.4

	defensiveBase    = 2.0
	defensiveDivisor = 1.5
	defensiveFloor   = 0.5
	defensiveCeil    = 1.8

	// Home advantage applied to the home side's attack. The away side
	// gets the reciprocal, matching observed league-wide splits.
	homeAdvantage = 1.12

	minLambda = 0.2
	maxLambda = 4.5
)

// Estimate is the output of a single expected-goals computation.
// Features is the vector the regressor saw (or would have seen), kept
// so callers can persist it as a training sample.
type Estimate struct {
	HomeXG     float64
	AwayXG     float64
	TotalXG    float64
	DataSource models.DataSource
	Regressed  bool // true when the auxiliary regressor contributed
	Features   contracts.GoalFeatures
}

// Estimator computes expected goals for a fixture. Noise is injected so
// tests can pin the factor; the regressor is optional.
type Estimator struct {
	noise     contracts.NoiseSource
	regressor contracts.GoalsRegressor
	log       *logrus.Entry
}

// NewEstimator wires an estimator. regressor may be nil.
func NewEstimator(noise contracts.NoiseSource, regressor contracts.GoalsRegressor, log *logrus.Logger) *Estimator {
	return &Estimator{
		noise:     noise,
		regressor: regressor,
		log:       log.WithField("component", "xg"),
	}
}

// Estimate computes expected goals for both sides of a fixture.
// h2h may have any number of meetings; with none, form carries full weight.
func (e *Estimator) Estimate(match models.Match, homeForm, awayForm models.TeamForm, h2h models.HeadToHeadRecord) Estimate {
	homeIsTeamA := h2h.TeamA == match.HomeTeam
	avgA, avgB := h2h.SideAverages()
	h2hHome, h2hAway := avgA, avgB
	if !homeIsTeamA {
		h2hHome, h2hAway = avgB, avgA
	}

	homeBase := blendAttack(homeForm.GoalsPerGame, h2hHome, len(h2h.Meetings))
	awayBase := blendAttack(awayForm.GoalsPerGame, h2hAway, len(h2h.Meetings))

	// Opposition defense scales the attacking estimate. At a league
	// average of 1.5 conceded per game the factor is exactly 1.0.
	homeXG := homeBase * defensiveFactor(awayForm.ConcededPerGame) * homeAdvantage
	awayXG := awayBase * defensiveFactor(homeForm.ConcededPerGame) / homeAdvantage

	features := contracts.GoalFeatures{
		HomeGoalsPerGame:    homeForm.GoalsPerGame,
		HomeConcededPerGame: homeForm.ConcededPerGame,
		AwayGoalsPerGame:    awayForm.GoalsPerGame,
		AwayConcededPerGame: awayForm.ConcededPerGame,
		HomeWinRate:         homeForm.WinRate,
		AwayWinRate:         awayForm.WinRate,
		H2HAvgHomeGoals:     h2hHome,
		H2HAvgAwayGoals:     h2hAway,
	}

	regressed := false
	if e.regressor != nil && e.regressor.Fitted() {
		rh, ra := e.regressor.Predict(features)
		if rh > 0 && ra > 0 {
			homeXG = (homeXG + rh) / 2
			awayXG = (awayXG + ra) / 2
			regressed = true
		}
	}

	factor := e.noise.Factor()
	homeXG = clamp(homeXG*factor, minLambda, maxLambda)
	awayXG = clamp(awayXG*factor, minLambda, maxLambda)

	source := dataSource(homeForm, awayForm)

	e.log.WithFields(logrus.Fields{
		"match":    match.MatchID,
		"home_xg":  round2(homeXG),
		"away_xg":  round2(awayXG),
		"noise":    round2(factor),
		"source":   source,
		"regressed": regressed,
	}).Debug("expected goals computed")

	return Estimate{
		HomeXG:     homeXG,
		AwayXG:     awayXG,
		TotalXG:    homeXG + awayXG,
		DataSource: source,
		Regressed:  regressed,
		Features:   features,
	}
}

// blendAttack mixes form scoring with the H2H side average. With fewer
// than three meetings the H2H term is dropped entirely.
func blendAttack(formGoals, h2hGoals float64, meetings int) float64 {
	if meetings < 3 {
		return formGoals
	}
	return formGoals*formWeight + h2hGoals*h2hWeight
}

// defensiveFactor maps opposition goals conceded per game onto a
// multiplier. The factor falls as the opposition concedes more, and a
// tight defense pushes it above 1.0.
func defensiveFactor(concededPerGame float64) float64 {
	return clamp(defensiveBase-concededPerGame/defensiveDivisor, defensiveFloor, defensiveCeil)
}

// dataSource tags the estimate by the weakest input backing it.
func dataSource(homeForm, awayForm models.TeamForm) models.DataSource {
	minGames := homeForm.SampleSize()
	if awayForm.SampleSize() < minGames {
		minGames = awayForm.SampleSize()
	}
	switch {
	case minGames >= 5:
		return models.SourceReal
	case minGames >= 2:
		return models.SourceEstimated
	default:
		return models.SourceSynthetic
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
