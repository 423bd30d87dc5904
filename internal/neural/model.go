// Package neural holds the learned score-distribution model blended
// into the ensemble alongside the analytic Poisson matrix.
package neural

import (
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	// Below this many settled matches the empirical distribution is
	// too noisy to be worth blending.
	minTrainingMatches = 50

	// Laplace smoothing added to every cell before normalizing, so a
	// scoreline never seen in training keeps nonzero mass.
	smoothing = 0.5
)

// EmpiricalModel learns the league-wide scoreline frequency surface
// from settled matches and conditions it on the per-match expected
// goals at prediction time. It stands in for the heavier network the
// prediction service proper would carry.
type EmpiricalModel struct {
	mu       sync.RWMutex
	counts   map[[2]int]float64
	total    float64
	meanHome float64
	meanAway float64
}

func NewEmpiricalModel() *EmpiricalModel {
	return &EmpiricalModel{counts: make(map[[2]int]float64)}
}

// Train ingests settled results. Cumulative; call with new batches as
// matches settle.
func (m *EmpiricalModel) Train(results []models.MatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sumHome, sumAway float64
	sumHome = m.meanHome * m.total
	sumAway = m.meanAway * m.total
	for _, r := range results {
		m.counts[[2]int{r.HomeGoals, r.AwayGoals}]++
		m.total++
		sumHome += float64(r.HomeGoals)
		sumAway += float64(r.AwayGoals)
	}
	if m.total > 0 {
		m.meanHome = sumHome / m.total
		m.meanAway = sumAway / m.total
	}
}

func (m *EmpiricalModel) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total >= minTrainingMatches
}

// ScoreProbs conditions the learned frequency surface on this match's
// expected goals: each cell is reweighted by the likelihood ratio of
// the target lambdas against the training means, then renormalized.
func (m *EmpiricalModel) ScoreProbs(lambdaHome, lambdaAway float64, maxGoals int) [][]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := maxGoals + 1
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	if m.total == 0 {
		return matrix
	}

	target := distuv.Poisson{Lambda: lambdaHome}
	targetA := distuv.Poisson{Lambda: lambdaAway}
	base := distuv.Poisson{Lambda: m.meanHome}
	baseA := distuv.Poisson{Lambda: m.meanAway}

	var sum float64
	for h := 0; h < n; h++ {
		ratioH := likelihoodRatio(target, base, h)
		for a := 0; a < n; a++ {
			freq := m.counts[[2]int{h, a}] + smoothing
			p := freq * ratioH * likelihoodRatio(targetA, baseA, a)
			matrix[h][a] = p
			sum += p
		}
	}
	if sum > 0 {
		for h := range matrix {
			for a := range matrix[h] {
				matrix[h][a] /= sum
			}
		}
	}
	return matrix
}

// likelihoodRatio caps the reweighting so rare cells cannot blow up.
func likelihoodRatio(target, base distuv.Poisson, k int) float64 {
	b := base.Prob(float64(k))
	if b <= 0 {
		return 1
	}
	r := target.Prob(float64(k)) / b
	if r > 20 {
		r = 20
	}
	return r
}
