// Package scoredist converts expected goals into a full score-probability
// matrix using an independent Poisson model with the Dixon-Coles
// low-score correction.
package scoredist

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	// DefaultRho is the Dixon-Coles correlation parameter. Typical
	// fitted values sit between -0.10 and -0.15.
	DefaultRho = -0.13

	// DefaultMaxGoals caps the matrix at this many goals per side.
	DefaultMaxGoals = 10

	// lambdaEpsilon is the floor applied to non-positive expected goals.
	lambdaEpsilon = 0.01
)

// Model computes Dixon-Coles-corrected score distributions.
type Model struct {
	Rho      float64
	MaxGoals int
}

// New returns a Model with the standard parameters.
func New() *Model {
	return &Model{Rho: DefaultRho, MaxGoals: DefaultMaxGoals}
}

// Matrix returns the normalized probability matrix P(h,a) for
// h,a in [0, MaxGoals]. The Dixon-Coles correction multiplies only the
// four low-score cells; renormalization compensates for truncation.
func (m *Model) Matrix(lambdaHome, lambdaAway float64) [][]float64 {
	lambdaHome = clampLambda(lambdaHome)
	lambdaAway = clampLambda(lambdaAway)

	home := distuv.Poisson{Lambda: lambdaHome}
	away := distuv.Poisson{Lambda: lambdaAway}

	n := m.MaxGoals + 1
	matrix := make([][]float64, n)
	for h := 0; h < n; h++ {
		matrix[h] = make([]float64, n)
		ph := home.Prob(float64(h))
		for a := 0; a < n; a++ {
			matrix[h][a] = ph * away.Prob(float64(a)) * m.tau(h, a, lambdaHome, lambdaAway)
		}
	}

	normalize(matrix)
	return matrix
}

// tau is the Dixon-Coles correction factor. All cells outside the four
// low-score combinations are untouched.
func (m *Model) tau(h, a int, lambdaHome, lambdaAway float64) float64 {
	switch {
	case h == 0 && a == 0:
		return 1 - lambdaHome*lambdaAway*m.Rho
	case h == 0 && a == 1:
		return 1 + lambdaHome*m.Rho
	case h == 1 && a == 0:
		return 1 + lambdaAway*m.Rho
	case h == 1 && a == 1:
		return 1 - m.Rho
	default:
		return 1.0
	}
}

// TopScores returns the topN highest-probability scorelines at or above
// minProbability, each with implied fair odds.
func (m *Model) TopScores(lambdaHome, lambdaAway float64, topN int, minProbability float64) []models.ScoreCandidate {
	matrix := m.Matrix(lambdaHome, lambdaAway)
	return TopScoresFromMatrix(matrix, topN, minProbability)
}

// TopScoresFromMatrix extracts the top candidates from an already
// computed (and possibly ensemble-blended) matrix.
func TopScoresFromMatrix(matrix [][]float64, topN int, minProbability float64) []models.ScoreCandidate {
	candidates := make([]models.ScoreCandidate, 0, topN)
	for h := range matrix {
		for a := range matrix[h] {
			p := matrix[h][a]
			if p < minProbability || p <= 0 {
				continue
			}
			candidates = append(candidates, models.ScoreCandidate{
				HomeGoals:   h,
				AwayGoals:   a,
				Probability: p,
				ImpliedOdds: 1.0 / p,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Probability > candidates[j].Probability
	})

	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// MarketProbs derives 1X2, over/under, and BTTS probabilities by summing
// matrix regions. Deriving rather than recomputing keeps the aggregate
// markets consistent with the exact-score numbers.
func MarketProbs(matrix [][]float64) models.MarketProbs {
	var probs models.MarketProbs
	for h := range matrix {
		for a := range matrix[h] {
			p := matrix[h][a]
			switch {
			case h > a:
				probs.HomeWin += p
			case h == a:
				probs.Draw += p
			default:
				probs.AwayWin += p
			}
			total := h + a
			if total > 1 {
				probs.Over1p5 += p
			}
			if total > 2 {
				probs.Over2p5 += p
			}
			if total > 3 {
				probs.Over3p5 += p
			}
			if h > 0 && a > 0 {
				probs.BTTSYes += p
			}
		}
	}
	return probs
}

// Normalize rescales a matrix in place so its cells sum to 1.
func Normalize(matrix [][]float64) {
	normalize(matrix)
}

func normalize(matrix [][]float64) {
	var total float64
	for h := range matrix {
		for a := range matrix[h] {
			total += matrix[h][a]
		}
	}
	if total <= 0 {
		return
	}
	for h := range matrix {
		for a := range matrix[h] {
			matrix[h][a] /= total
		}
	}
}

func clampLambda(lambda float64) float64 {
	if lambda <= 0 {
		return lambdaEpsilon
	}
	return lambda
}
