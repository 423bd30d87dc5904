package selector

import (
	"strings"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// TierThresholds is an immutable admission gate for one tier. Values
// are fixed at construction; relaxation swaps ladders, never edits one.
type TierThresholds struct {
	tier          models.Tier
	minEdge       float64
	minConfidence float64
}

func NewTierThresholds(tier models.Tier, minEdge, minConfidence float64) TierThresholds {
	return TierThresholds{tier: tier, minEdge: minEdge, minConfidence: minConfidence}
}

func (t TierThresholds) Tier() models.Tier      { return t.tier }
func (t TierThresholds) MinEdge() float64       { return t.minEdge }
func (t TierThresholds) MinConfidence() float64 { return t.minConfidence }

// Admits reports whether a candidate clears this tier's gate.
func (t TierThresholds) Admits(edgePct, confidence float64) bool {
	return edgePct >= t.minEdge && confidence >= t.minConfidence
}

// Ladder is an ordered set of tier gates, best tier first.
type Ladder []TierThresholds

// Classify returns the best tier that admits the candidate, or
// TierRejected when none does.
func (l Ladder) Classify(edgePct, confidence float64) models.Tier {
	for _, t := range l {
		if t.Admits(edgePct, confidence) {
			return t.tier
		}
	}
	return models.TierRejected
}

// Gate returns the thresholds for a tier, false when absent.
func (l Ladder) Gate(tier models.Tier) (TierThresholds, bool) {
	for _, t := range l {
		if t.tier == tier {
			return t, true
		}
	}
	return TierThresholds{}, false
}

// ExactScoreLadder is the standard admission ladder.
func ExactScoreLadder() Ladder {
	return Ladder{
		NewTierThresholds(models.TierPremium, 6.0, 65),
		NewTierThresholds(models.TierStandard, 4.0, 55),
		NewTierThresholds(models.TierValue, 2.0, 45),
		NewTierThresholds(models.TierBackup, 1.5, 40),
	}
}

// UnderLadder gates "Under"-style selections. Low-total games punish
// being wrong about one goal, so every gate is stricter.
func UnderLadder() Ladder {
	return Ladder{
		NewTierThresholds(models.TierPremium, 8.5, 70),
		NewTierThresholds(models.TierStandard, 5.5, 60),
		NewTierThresholds(models.TierValue, 3.0, 50),
		NewTierThresholds(models.TierBackup, 2.0, 45),
	}
}

// MarketExactScore and MarketTotals name the two supported markets.
const (
	MarketExactScore = "exact_score"
	MarketTotals     = "totals"
)

// LadderFor picks the gate for one selection. Only "Under"-style picks
// draw the strict ladder; "Over" totals use the standard gates. Unknown
// markets default to strict.
func LadderFor(market, selection string) Ladder {
	switch market {
	case MarketExactScore:
		return ExactScoreLadder()
	case MarketTotals:
		if strings.Contains(selection, "Under") {
			return UnderLadder()
		}
		return ExactScoreLadder()
	default:
		return UnderLadder()
	}
}
