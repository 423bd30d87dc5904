package models

import (
	"fmt"
	"time"
)

// Tier is the quality bucket assigned to an accepted opportunity.
type Tier string

const (
	TierPremium  Tier = "premium"
	TierStandard Tier = "standard"
	TierValue    Tier = "value"
	TierBackup   Tier = "backup"
	TierRejected Tier = "rejected"
)

// Status tracks the opportunity lifecycle. Only the external settlement
// collaborator moves a row out of pending.
type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusVoid    Status = "void"
)

// DataSource tags how an opportunity's numbers were obtained so consumers
// can tell model-derived values from stand-ins.
type DataSource string

const (
	SourceReal      DataSource = "real"      // real market odds, real stats
	SourceEstimated DataSource = "estimated" // model-derived inputs
	SourceSynthetic DataSource = "synthetic" // placeholder values, no market
)

// ScoreCandidate is one scoreline with its probability under each
// contributing source and the final ensemble probability.
// Candidates live only within a single evaluation.
type ScoreCandidate struct {
	HomeGoals   int
	AwayGoals   int
	Probability float64 // final ensemble probability
	ImpliedOdds float64 // 1 / Probability
	Sources     SourceBreakdown
}

// Score renders the scoreline in the conventional "2-1" form.
func (c ScoreCandidate) Score() string {
	return fmt.Sprintf("%d-%d", c.HomeGoals, c.AwayGoals)
}

// SourceBreakdown records which signals contributed to a candidate's
// final probability. Consumed by the confidence scorer.
type SourceBreakdown struct {
	Poisson       float64
	Neural        float64
	H2HEmpirical  float64
	SharpStrength float64 // 0-100 steam indicator, 0 when no signal
	UsedNeural    bool
	UsedH2H       bool
	UsedSharp     bool
}

// MarketProbs holds aggregate market probabilities derived from the same
// score matrix, guaranteeing consistency with the exact-score numbers.
type MarketProbs struct {
	HomeWin  float64
	Draw     float64
	AwayWin  float64
	Over1p5  float64
	Over2p5  float64
	Over3p5  float64
	BTTSYes  float64
}

// Opportunity is the accepted unit of work written to the shared store.
type Opportunity struct {
	ID             string
	MatchID        string
	HomeTeam       string
	AwayTeam       string
	League         string
	KickoffTime    time.Time
	Market         string // e.g. "exact_score", "totals"
	Selection      string // e.g. "Exact Score 2-1", "Under 2.5"
	Odds           float64
	EdgePercentage float64
	Confidence     float64 // 0-100
	Tier           Tier
	QualityScore   float64
	DailyRank      int
	Status         Status
	DataSource     DataSource
	CreatedAt      time.Time

	// Settlement fields, written only by the settlement collaborator.
	Outcome    string
	ProfitLoss float64
	SettledAt  *time.Time
}

// DedupKey identifies an opportunity for the rolling 24h duplicate check.
func (o Opportunity) DedupKey() string {
	return o.HomeTeam + "|" + o.AwayTeam + "|" + o.Selection
}
