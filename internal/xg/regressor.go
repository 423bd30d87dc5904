package xg

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/XavierBriggs/Cassandra/pkg/contracts"
)

const (
	regressorFeatures = 8
	// Below this many settled samples the regressor refuses to fit;
	// least squares on a thin sample overfits badly.
	minTrainingSamples = 30
)

// TrainingSample is one settled match with the features observed before
// kickoff and the goals actually scored.
type TrainingSample struct {
	Features  contracts.GoalFeatures
	HomeGoals float64
	AwayGoals float64
}

// LeastSquaresRegressor fits two linear models (home and away goals)
// over the shared feature vector using ordinary least squares.
// Refit replaces the coefficients atomically; Predict is lock-free
// reads aside from the coefficient snapshot.
type LeastSquaresRegressor struct {
	mu       sync.RWMutex
	homeCoef *mat.VecDense // nil until fitted
	awayCoef *mat.VecDense
}

func NewLeastSquaresRegressor() *LeastSquaresRegressor {
	return &LeastSquaresRegressor{}
}

func (r *LeastSquaresRegressor) Fitted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.homeCoef != nil && r.awayCoef != nil
}

// Refit solves both least-squares systems from the given samples.
// Returns false without touching existing coefficients when the sample
// is too small or the system is degenerate.
func (r *LeastSquaresRegressor) Refit(samples []TrainingSample) bool {
	if len(samples) < minTrainingSamples {
		return false
	}

	rows := len(samples)
	cols := regressorFeatures + 1 // intercept column
	x := mat.NewDense(rows, cols, nil)
	yHome := mat.NewVecDense(rows, nil)
	yAway := mat.NewVecDense(rows, nil)

	for i, s := range samples {
		x.SetRow(i, featureRow(s.Features))
		yHome.SetVec(i, s.HomeGoals)
		yAway.SetVec(i, s.AwayGoals)
	}

	homeCoef, err := solve(x, yHome)
	if err != nil {
		return false
	}
	awayCoef, err := solve(x, yAway)
	if err != nil {
		return false
	}

	r.mu.Lock()
	r.homeCoef = homeCoef
	r.awayCoef = awayCoef
	r.mu.Unlock()
	return true
}

func (r *LeastSquaresRegressor) Predict(features contracts.GoalFeatures) (lambdaHome, lambdaAway float64) {
	r.mu.RLock()
	home, away := r.homeCoef, r.awayCoef
	r.mu.RUnlock()
	if home == nil || away == nil {
		return 0, 0
	}

	row := mat.NewVecDense(regressorFeatures+1, featureRow(features))
	return mat.Dot(row, home), mat.Dot(row, away)
}

func solve(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, cols := x.Dims()
	coef := mat.NewVecDense(cols, nil)

	var qr mat.QR
	qr.Factorize(x)
	if err := qr.SolveVecTo(coef, false, y); err != nil {
		return nil, err
	}
	return coef, nil
}

func featureRow(f contracts.GoalFeatures) []float64 {
	return []float64{
		1, // intercept
		f.HomeGoalsPerGame,
		f.HomeConcededPerGame,
		f.AwayGoalsPerGame,
		f.AwayConcededPerGame,
		f.HomeWinRate,
		f.AwayWinRate,
		f.H2HAvgHomeGoals,
		f.H2HAvgAwayGoals,
	}
}
