// Package h2h classifies head-to-head dominance patterns and proposes
// the ensemble weight given to historical evidence.
package h2h

import (
	"fmt"
	"math"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// DominanceLevel classifies how one-sided a pairing has been.
type DominanceLevel string

const (
	LevelExtreme  DominanceLevel = "extreme"
	LevelStrong   DominanceLevel = "strong"
	LevelModerate DominanceLevel = "moderate"
	LevelSlight   DominanceLevel = "slight"
	LevelBalanced DominanceLevel = "balanced"
	LevelNone     DominanceLevel = "none"
)

// Trend describes whether the historical pattern still holds.
type Trend string

const (
	TrendContinuing Trend = "continuing"
	TrendReversing  Trend = "reversing"
	TrendNeutral    Trend = "neutral"
)

// Weights per dominance level. The reversing-trend scaling is applied on
// top of these.
const (
	extremeWeight  = 0.60
	strongWeight   = 0.50
	moderateWeight = 0.35
	slightWeight   = 0.25
	balancedWeight = 0.15
	minimalWeight  = 0.10

	reversalWeightScale     = 0.7
	reversalConfidenceScale = 0.8
)

// ScorePatterns carries supplementary scoring statistics. These inform
// insights only; they are never fed back into the ensemble.
type ScorePatterns struct {
	AvgTotalGoals       float64
	BTTSRate            float64
	CleanSheets         int
	HighScoring         bool
	LowScoring          bool
	FrequentCleanSheets bool
}

// Analysis is the full output of the dominance analyzer.
type Analysis struct {
	Level             DominanceLevel
	RecommendedWeight float64
	DominantTeam      string // empty when no side dominates
	PatternConfidence float64 // 0-100
	Trend             Trend
	Patterns          ScorePatterns
	Insights          []string
	RecordA           string // e.g. "4-1-0" as wins-draws-losses for TeamA
}

// EnsembleWeights splits the unit interval between the model ensemble
// and the H2H empirical distribution.
func (a Analysis) EnsembleWeights() (ensemble, historical float64) {
	return 1.0 - a.RecommendedWeight, a.RecommendedWeight
}

// Analyze classifies the pairing's recent history. Fewer than three
// meetings degrades to a minimal weight and no classification.
func Analyze(record models.HeadToHeadRecord) Analysis {
	if len(record.Meetings) < 3 {
		return Analysis{
			Level:             LevelNone,
			RecommendedWeight: minimalWeight,
			Trend:             TrendNeutral,
			Insights:          []string{"insufficient head-to-head history"},
		}
	}

	recent := record.Meetings
	if len(recent) > 5 {
		recent = recent[:5]
	}

	var winsA, winsB, draws int
	goalsA := make([]int, 0, len(recent))
	goalsB := make([]int, 0, len(recent))
	for _, m := range recent {
		ga, gb := record.GoalsFor(m)
		goalsA = append(goalsA, ga)
		goalsB = append(goalsB, gb)
		switch {
		case ga > gb:
			winsA++
		case gb > ga:
			winsB++
		default:
			draws++
		}
	}

	avgA := mean(goalsA)
	avgB := mean(goalsB)
	goalDiff := avgA - avgB

	analysis := classify(record.TeamA, record.TeamB, winsA, winsB, draws, goalDiff)
	analysis.RecordA = fmt.Sprintf("%d-%d-%d", winsA, draws, winsB)
	analysis.Patterns = analyzePatterns(goalsA, goalsB, &analysis.Insights)

	analysis.Trend = detectTrend(record)
	if analysis.Trend == TrendReversing {
		analysis.Insights = append(analysis.Insights, "recent trend reversal detected, reducing historical weight")
		analysis.RecommendedWeight *= reversalWeightScale
		analysis.PatternConfidence *= reversalConfidenceScale
	}

	if analysis.Level == LevelExtreme || analysis.Level == LevelStrong {
		loser := record.TeamB
		if analysis.DominantTeam == record.TeamB {
			loser = record.TeamA
		}
		analysis.Insights = append(analysis.Insights,
			fmt.Sprintf("bogey team: %s struggles against %s", loser, analysis.DominantTeam))
	}

	return analysis
}

// classify applies the dominance thresholds in priority order.
func classify(teamA, teamB string, winsA, winsB, draws int, goalDiff float64) Analysis {
	dominant := teamA
	domWins, otherWins := winsA, winsB
	if winsB > winsA {
		dominant = teamB
		domWins, otherWins = winsB, winsA
	}

	record := fmt.Sprintf("%d-%d-%d", domWins, draws, otherWins)
	absDiff := math.Abs(goalDiff)

	switch {
	case domWins >= 5 || (domWins >= 4 && otherWins == 0) || absDiff >= 1.5:
		return Analysis{
			Level:             LevelExtreme,
			RecommendedWeight: extremeWeight,
			DominantTeam:      dominant,
			PatternConfidence: 95,
			Insights:          []string{fmt.Sprintf("%s extreme dominance: %s in last 5", dominant, record)},
		}
	case domWins >= 4 || absDiff >= 1.2:
		return Analysis{
			Level:             LevelStrong,
			RecommendedWeight: strongWeight,
			DominantTeam:      dominant,
			PatternConfidence: 85,
			Insights:          []string{fmt.Sprintf("%s strong dominance: %s in last 5", dominant, record)},
		}
	case domWins >= 3:
		return Analysis{
			Level:             LevelModerate,
			RecommendedWeight: moderateWeight,
			DominantTeam:      dominant,
			PatternConfidence: 70,
			Insights:          []string{fmt.Sprintf("%s moderate edge: %s in last 5", dominant, record)},
		}
	case domWins-otherWins >= 2:
		return Analysis{
			Level:             LevelSlight,
			RecommendedWeight: slightWeight,
			DominantTeam:      dominant,
			PatternConfidence: 55,
			Insights:          []string{fmt.Sprintf("%s slight edge: %s", dominant, record)},
		}
	default:
		return Analysis{
			Level:             LevelBalanced,
			RecommendedWeight: balancedWeight,
			PatternConfidence: 40,
			Insights:          []string{fmt.Sprintf("balanced pairing: %s", record)},
		}
	}
}

// detectTrend compares the most recent 3 meetings against meetings 4-7.
// A side that dominated the earlier window but has no recent win marks
// the pattern as reversing.
func detectTrend(record models.HeadToHeadRecord) Trend {
	if len(record.Meetings) < 6 {
		return TrendNeutral
	}

	last3 := record.Meetings[:3]
	end := 7
	if len(record.Meetings) < end {
		end = len(record.Meetings)
	}
	previous := record.Meetings[3:end]

	recentA, recentB := countWins(record, last3)
	prevA, prevB := countWins(record, previous)

	if prevA >= 3 && recentA == 0 {
		return TrendReversing
	}
	if prevB >= 3 && recentB == 0 {
		return TrendReversing
	}
	return TrendContinuing
}

func countWins(record models.HeadToHeadRecord, meetings []models.MatchResult) (winsA, winsB int) {
	for _, m := range meetings {
		ga, gb := record.GoalsFor(m)
		if ga > gb {
			winsA++
		} else if gb > ga {
			winsB++
		}
	}
	return winsA, winsB
}

func analyzePatterns(goalsA, goalsB []int, insights *[]string) ScorePatterns {
	n := len(goalsA)
	var totalGoals, btts, cleanSheets int
	for i := 0; i < n; i++ {
		totalGoals += goalsA[i] + goalsB[i]
		if goalsA[i] > 0 && goalsB[i] > 0 {
			btts++
		}
		if goalsA[i] == 0 {
			cleanSheets++
		}
		if goalsB[i] == 0 {
			cleanSheets++
		}
	}

	p := ScorePatterns{
		AvgTotalGoals:       float64(totalGoals) / float64(n),
		BTTSRate:            float64(btts) / float64(n),
		CleanSheets:         cleanSheets,
		FrequentCleanSheets: cleanSheets >= 3,
	}
	p.HighScoring = p.AvgTotalGoals > 3.0
	p.LowScoring = p.AvgTotalGoals < 2.0

	if p.AvgTotalGoals > 3.5 {
		*insights = append(*insights, fmt.Sprintf("high-scoring pairing: %.1f avg goals", p.AvgTotalGoals))
	} else if p.AvgTotalGoals < 1.8 {
		*insights = append(*insights, fmt.Sprintf("low-scoring pairing: %.1f avg goals", p.AvgTotalGoals))
	}

	return p
}

// EmpiricalMatrix builds a normalized per-score distribution from the
// historical meetings, oriented so the home side of the upcoming match
// indexes rows. Returns nil when no meeting fits inside maxGoals.
func EmpiricalMatrix(record models.HeadToHeadRecord, homeIsTeamA bool, maxGoals int) [][]float64 {
	if len(record.Meetings) == 0 {
		return nil
	}

	n := maxGoals + 1
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	var total float64
	for _, m := range record.Meetings {
		ga, gb := record.GoalsFor(m)
		h, a := ga, gb
		if !homeIsTeamA {
			h, a = gb, ga
		}
		if h > maxGoals || a > maxGoals {
			continue
		}
		matrix[h][a]++
		total++
	}
	if total == 0 {
		return nil
	}
	for h := range matrix {
		for a := range matrix[h] {
			matrix[h][a] /= total
		}
	}
	return matrix
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
