package neural

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

func syntheticResults(n int, seed int64) []models.MatchResult {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.MatchResult, n)
	for i := range out {
		// Crude Poisson-ish draw; distribution shape is irrelevant,
		// only that the counts accumulate correctly.
		out[i] = models.MatchResult{
			HomeGoals: rng.Intn(4),
			AwayGoals: rng.Intn(3),
		}
	}
	return out
}

func TestUnavailableUntilTrained(t *testing.T) {
	m := NewEmpiricalModel()
	assert.False(t, m.Available())

	m.Train(syntheticResults(30, 1))
	assert.False(t, m.Available())

	m.Train(syntheticResults(30, 2))
	assert.True(t, m.Available())
}

func TestScoreProbsNormalized(t *testing.T) {
	m := NewEmpiricalModel()
	m.Train(syntheticResults(200, 7))

	matrix := m.ScoreProbs(1.6, 1.1, 10)
	require.Len(t, matrix, 11)

	var sum float64
	for _, row := range matrix {
		require.Len(t, row, 11)
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSmoothingKeepsUnseenScoresPositive(t *testing.T) {
	m := NewEmpiricalModel()
	// Train only on 1-1 draws; other cells survive via smoothing.
	results := make([]models.MatchResult, 60)
	for i := range results {
		results[i] = models.MatchResult{HomeGoals: 1, AwayGoals: 1}
	}
	m.Train(results)

	matrix := m.ScoreProbs(1.0, 1.0, 10)
	assert.Greater(t, matrix[3][2], 0.0)
	assert.Greater(t, matrix[1][1], matrix[3][2])
}

func TestConditioningShiftsMass(t *testing.T) {
	m := NewEmpiricalModel()
	m.Train(syntheticResults(300, 11))

	low := m.ScoreProbs(0.8, 0.8, 10)
	high := m.ScoreProbs(2.8, 2.2, 10)

	// Higher lambdas must move expected total goals upward.
	assert.Greater(t, expectedTotal(high), expectedTotal(low))
}

func expectedTotal(matrix [][]float64) float64 {
	var total float64
	for h, row := range matrix {
		for a, p := range row {
			total += float64(h+a) * p
		}
	}
	return total
}
