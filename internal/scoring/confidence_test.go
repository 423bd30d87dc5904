package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullInputs() Inputs {
	return Inputs{
		EdgePct:          8.0,
		Odds:             9.5,
		FormGames:        6,
		H2HMeetings:      5,
		LineupsConfirmed: true,
		InjuriesKnown:    true,
		TopProbability:   0.12,
		RunnerUpProb:     0.09,
		LeagueMultiplier: 1.25,
	}
}

func TestScoreWithinBounds(t *testing.T) {
	assert.GreaterOrEqual(t, Score(Inputs{}), 0.0)
	assert.LessOrEqual(t, Score(fullInputs()), 100.0)

	huge := fullInputs()
	huge.EdgePct = 500
	huge.TopProbability = 1
	huge.RunnerUpProb = 0
	assert.LessOrEqual(t, Score(huge), 100.0)
}

// Confidence must never decrease as edge increases.
func TestMonotoneInEdge(t *testing.T) {
	in := fullInputs()
	prev := -1.0
	for edge := 0.0; edge <= 30; edge += 0.5 {
		in.EdgePct = edge
		s := Score(in)
		assert.GreaterOrEqual(t, s, prev, "edge %.1f", edge)
		prev = s
	}
}

func TestEdgeContributionCaps(t *testing.T) {
	in := fullInputs()
	in.EdgePct = edgeCap
	atCap := Score(in)
	in.EdgePct = edgeCap * 3
	assert.Equal(t, atCap, Score(in))
}

func TestCompletenessBonuses(t *testing.T) {
	base := Inputs{EdgePct: 5, Odds: 9, TopProbability: 0.1, RunnerUpProb: 0.1}
	bare := Score(base)

	withForm := base
	withForm.FormGames = minFormGames
	assert.InDelta(t, bare+formBonus, Score(withForm), 1e-9)

	withH2H := base
	withH2H.H2HMeetings = minMeetings
	assert.InDelta(t, bare+h2hBonus, Score(withH2H), 1e-9)

	withLineups := base
	withLineups.LineupsConfirmed = true
	assert.InDelta(t, bare+lineupBonus, Score(withLineups), 1e-9)

	withInjuries := base
	withInjuries.InjuriesKnown = true
	assert.InDelta(t, bare+injuryBonus, Score(withInjuries), 1e-9)
}

func TestConcentrationRewardsClearFavorite(t *testing.T) {
	flat := fullInputs()
	flat.TopProbability = 0.10
	flat.RunnerUpProb = 0.10

	peaked := fullInputs()
	peaked.TopProbability = 0.15
	peaked.RunnerUpProb = 0.05

	assert.Greater(t, Score(peaked), Score(flat))
}

func TestOddsSweetSpot(t *testing.T) {
	inside := fullInputs()
	inside.Odds = 10.0

	below := fullInputs()
	below.Odds = 4.0

	above := fullInputs()
	above.Odds = 25.0

	assert.InDelta(t, Score(inside)-sweetSpotBonus, Score(below), 1e-9)
	assert.Equal(t, Score(below), Score(above))
}

func TestLeagueAdjustmentSymmetricClamp(t *testing.T) {
	assert.InDelta(t, leagueSwing, leagueAdjustment(2.0), 1e-9)
	assert.InDelta(t, -leagueSwing, leagueAdjustment(0.5), 1e-9)
	assert.InDelta(t, 0, leagueAdjustment(1.0), 1e-9)
	assert.InDelta(t, 0, leagueAdjustment(0), 1e-9)
}

func TestNegativeEdgeTreatedAsZero(t *testing.T) {
	in := fullInputs()
	in.EdgePct = 0
	zero := Score(in)
	in.EdgePct = -10
	assert.Equal(t, zero, Score(in))
}
