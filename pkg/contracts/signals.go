package contracts

// NoiseSource supplies the bounded match-specific variance factor used by
// the expected-goals estimator. Implementations must stay within the
// declared bounds so runs are reproducible under test.
type NoiseSource interface {
	// Factor returns a multiplier in [Low, High].
	Factor() float64
	// Bounds reports the inclusive range Factor draws from.
	Bounds() (low, high float64)
}

// GoalsRegressor is an auxiliary model trained on settled matches that
// predicts expected goals for/against from the same feature set the
// baseline estimator uses.
type GoalsRegressor interface {
	// Fitted reports whether the model has been trained.
	Fitted() bool
	// Predict returns regression-based expected goals for both sides.
	Predict(features GoalFeatures) (lambdaHome, lambdaAway float64)
}

// GoalFeatures is the shared feature vector for goal regression.
type GoalFeatures struct {
	HomeGoalsPerGame    float64
	HomeConcededPerGame float64
	AwayGoalsPerGame    float64
	AwayConcededPerGame float64
	HomeWinRate         float64
	AwayWinRate         float64
	H2HAvgHomeGoals     float64
	H2HAvgAwayGoals     float64
}

// ScoreModel is a learned per-score distribution blended into the
// ensemble when available.
type ScoreModel interface {
	// Available reports whether the model is trained and usable.
	Available() bool
	// ScoreProbs returns a normalized matrix of P(h,a) with the same
	// dimensions as the Poisson matrix it will be blended with.
	ScoreProbs(lambdaHome, lambdaAway float64, maxGoals int) [][]float64
}
