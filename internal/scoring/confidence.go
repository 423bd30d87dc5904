// Package scoring turns a candidate's edge and supporting evidence into
// a 0-100 confidence figure used by tier selection.
package scoring

import "math"

const (
	baseConfidence = 30.0

	// Edge contribution saturates; a 40% edge on an exact score says
	// more about stale odds than about the model.
	edgeCap          = 15.0
	edgeContribution = 25.0

	formBonus    = 8.0
	h2hBonus     = 7.0
	lineupBonus  = 5.0
	injuryBonus  = 5.0
	minFormGames = 5
	minMeetings  = 3

	concentrationContribution = 10.0

	leagueSwing = 5.0

	// Exact-score prices inside this band settle often enough to trust
	// while still paying for the risk.
	sweetSpotLow   = 7.0
	sweetSpotHigh  = 14.0
	sweetSpotBonus = 5.0
)

// Inputs is everything the scorer considers for one candidate.
type Inputs struct {
	EdgePct          float64 // model edge over the market, in percent
	Odds             float64 // decimal odds of the selection
	FormGames        int     // min(home, away) form sample size
	H2HMeetings      int
	LineupsConfirmed bool
	InjuriesKnown    bool
	TopProbability   float64 // best candidate probability for the match
	RunnerUpProb     float64 // second-best, 0 when only one candidate
	LeagueMultiplier float64 // registry tier multiplier, 1.0 when unknown
}

// Score computes the confidence figure. Strictly non-decreasing in
// EdgePct with all other inputs held fixed.
func Score(in Inputs) float64 {
	score := baseConfidence

	edge := math.Max(in.EdgePct, 0)
	if edge > edgeCap {
		edge = edgeCap
	}
	score += edge / edgeCap * edgeContribution

	if in.FormGames >= minFormGames {
		score += formBonus
	}
	if in.H2HMeetings >= minMeetings {
		score += h2hBonus
	}
	if in.LineupsConfirmed {
		score += lineupBonus
	}
	if in.InjuriesKnown {
		score += injuryBonus
	}

	score += concentration(in.TopProbability, in.RunnerUpProb)
	score += leagueAdjustment(in.LeagueMultiplier)

	if in.Odds >= sweetSpotLow && in.Odds <= sweetSpotHigh {
		score += sweetSpotBonus
	}

	return clamp(score, 0, 100)
}

// concentration rewards a clear favorite scoreline. A flat distribution
// means the model has no real opinion.
func concentration(top, runnerUp float64) float64 {
	if top <= 0 {
		return 0
	}
	gap := (top - runnerUp) / top
	return clamp(gap, 0, 1) * concentrationContribution
}

// leagueAdjustment maps the registry tier multiplier onto a small swing
// around zero. Top-five leagues have deeper markets and better data.
func leagueAdjustment(multiplier float64) float64 {
	if multiplier <= 0 {
		return 0
	}
	return clamp((multiplier-1.0)*20, -leagueSwing, leagueSwing)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
