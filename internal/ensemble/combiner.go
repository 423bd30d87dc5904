// Package ensemble blends the analytic score matrix with the learned
// model, head-to-head evidence and sharp-money signals into the final
// per-score distribution a match is evaluated on.
package ensemble

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/internal/h2h"
	"github.com/XavierBriggs/Cassandra/internal/scoredist"
	"github.com/XavierBriggs/Cassandra/internal/sharp"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	// Analytic vs learned split when the learned model is available.
	poissonWeight = 0.4
	neuralWeight  = 0.6

	// Cap on the multiplicative boost a steamed scoreline can receive.
	maxSharpBoost = 0.15

	defaultTopN    = 5
	defaultMinProb = 0.01
)

// Combiner owns the blending pipeline. The score model may be nil.
type Combiner struct {
	dist       *scoredist.Model
	scoreModel contracts.ScoreModel
	log        *logrus.Entry
}

func NewCombiner(dist *scoredist.Model, scoreModel contracts.ScoreModel, log *logrus.Logger) *Combiner {
	return &Combiner{
		dist:       dist,
		scoreModel: scoreModel,
		log:        log.WithField("component", "ensemble"),
	}
}

// Input carries everything one match evaluation feeds the blender.
type Input struct {
	Match        models.Match
	LambdaHome   float64
	LambdaAway   float64
	H2HAnalysis  h2h.Analysis
	H2HRecord    models.HeadToHeadRecord
	HomeIsTeamA  bool
	SharpSignals map[string]sharp.Signal // keyed by "2-1" scoreline
}

// Prediction is the blended output for one match.
type Prediction struct {
	Matrix     [][]float64
	Candidates []models.ScoreCandidate
	Markets    models.MarketProbs
	UsedNeural bool
	UsedH2H    bool
	UsedSharp  bool
}

// Predict runs the full blend: Poisson base, learned-model mix, H2H
// empirical mix, then sharp boosts. The matrix is renormalized after
// every stage so each step works on a proper distribution.
func (c *Combiner) Predict(in Input) Prediction {
	maxGoals := c.dist.MaxGoals
	base := c.dist.Matrix(in.LambdaHome, in.LambdaAway)

	pred := Prediction{}

	neural := c.neuralMatrix(in.LambdaHome, in.LambdaAway, maxGoals)
	// base must stay pristine for the per-source breakdown.
	blended := clone(base)
	if neural != nil {
		blended = mix(base, neural, poissonWeight, neuralWeight)
		scoredist.Normalize(blended)
		pred.UsedNeural = true
	}

	empirical := h2h.EmpiricalMatrix(in.H2HRecord, in.HomeIsTeamA, maxGoals)
	historicalWeight := 0.0
	if empirical != nil && len(in.H2HRecord.Meetings) >= 3 {
		ensembleW, histW := in.H2HAnalysis.EnsembleWeights()
		blended = mix(blended, empirical, ensembleW, histW)
		scoredist.Normalize(blended)
		pred.UsedH2H = true
		historicalWeight = histW
	}

	if c.applySharp(blended, in.SharpSignals) {
		scoredist.Normalize(blended)
		pred.UsedSharp = true
	}

	pred.Matrix = blended
	pred.Candidates = c.annotate(blended, base, neural, empirical, in.SharpSignals, pred)
	pred.Markets = scoredist.MarketProbs(blended)

	c.log.WithFields(logrus.Fields{
		"match":       in.Match.MatchID,
		"used_neural": pred.UsedNeural,
		"used_h2h":    pred.UsedH2H,
		"used_sharp":  pred.UsedSharp,
		"h2h_weight":  historicalWeight,
		"candidates":  len(pred.Candidates),
	}).Debug("ensemble prediction built")

	return pred
}

func (c *Combiner) neuralMatrix(lambdaHome, lambdaAway float64, maxGoals int) [][]float64 {
	if c.scoreModel == nil || !c.scoreModel.Available() {
		return nil
	}
	return c.scoreModel.ScoreProbs(lambdaHome, lambdaAway, maxGoals)
}

// applySharp boosts steamed scorelines in place. Returns whether any
// cell moved.
func (c *Combiner) applySharp(matrix [][]float64, signals map[string]sharp.Signal) bool {
	if len(signals) == 0 {
		return false
	}

	moved := false
	for h := range matrix {
		for a := range matrix[h] {
			sig, ok := signals[scoreKey(h, a)]
			if !ok || !sig.Steam {
				continue
			}
			boost := 1 + (sig.Strength/100)*maxSharpBoost
			matrix[h][a] *= boost
			moved = true
		}
	}
	return moved
}

// annotate builds the sorted candidate list with the per-source
// breakdown attached to each scoreline.
func (c *Combiner) annotate(final, base, neural, empirical [][]float64, signals map[string]sharp.Signal, pred Prediction) []models.ScoreCandidate {
	candidates := scoredist.TopScoresFromMatrix(final, defaultTopN, defaultMinProb)

	for i := range candidates {
		h, a := candidates[i].HomeGoals, candidates[i].AwayGoals
		breakdown := models.SourceBreakdown{
			Poisson:    base[h][a],
			UsedNeural: pred.UsedNeural,
			UsedH2H:    pred.UsedH2H,
		}
		if neural != nil {
			breakdown.Neural = neural[h][a]
		}
		if empirical != nil && pred.UsedH2H {
			breakdown.H2HEmpirical = empirical[h][a]
		}
		if sig, ok := signals[scoreKey(h, a)]; ok && sig.Steam {
			breakdown.SharpStrength = sig.Strength
			breakdown.UsedSharp = true
		}
		candidates[i].Sources = breakdown
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Probability > candidates[j].Probability
	})
	return candidates
}

func scoreKey(h, a int) string {
	return models.ScoreCandidate{HomeGoals: h, AwayGoals: a}.Score()
}

func clone(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
		copy(out[i], m[i])
	}
	return out
}

// mix returns wA*a + wB*b elementwise. Dimensions must match.
func mix(a, b [][]float64, wA, wB float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(a[i]))
		for j := range a[i] {
			out[i][j] = wA*a[i][j] + wB*b[i][j]
		}
	}
	return out
}
