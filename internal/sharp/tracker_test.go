package sharp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tickSeries(base time.Time, points []struct {
	odds   float64
	minAgo int
}) []Tick {
	ticks := make([]Tick, len(points))
	for i, p := range points {
		ticks[i] = Tick{Odds: p.odds, ObservedAt: base.Add(-time.Duration(p.minAgo) * time.Minute)}
	}
	return ticks
}

func TestNoSteamOnStablePrice(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ticks := tickSeries(now, []struct {
		odds   float64
		minAgo int
	}{
		{odds: 8.50, minAgo: 40},
		{odds: 8.50, minAgo: 20},
		{odds: 8.50, minAgo: 0},
	})

	sig := Evaluate(ticks, now)
	assert.False(t, sig.Steam)
	assert.Zero(t, sig.DropPct)
	assert.Zero(t, sig.Strength)
}

func TestSteamOnFastDrop(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	// 8.00 -> 7.60 is a 5% drop inside the window.
	ticks := tickSeries(now, []struct {
		odds   float64
		minAgo int
	}{
		{odds: 8.00, minAgo: 30},
		{odds: 7.80, minAgo: 15},
		{odds: 7.60, minAgo: 0},
	})

	sig := Evaluate(ticks, now)
	assert.True(t, sig.Steam)
	assert.InDelta(t, 0.05, sig.DropPct, 1e-9)
	assert.InDelta(t, 8.00, sig.From, 1e-9)
	assert.InDelta(t, 7.60, sig.To, 1e-9)
	assert.InDelta(t, 0.05/saturationDrop*100, sig.Strength, 1e-9)
}

func TestSlowDriftOutsideWindowIgnored(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	// Same 5% total drop but the reference tick is stale; only the
	// most recent in-window ticks count, and those barely moved.
	ticks := tickSeries(now, []struct {
		odds   float64
		minAgo int
	}{
		{odds: 8.00, minAgo: 300},
		{odds: 7.65, minAgo: 30},
		{odds: 7.60, minAgo: 0},
	})

	sig := Evaluate(ticks, now)
	assert.False(t, sig.Steam)
	assert.InDelta(t, 7.65, sig.From, 1e-9)
	assert.Less(t, sig.DropPct, steamDropThreshold)
}

func TestRisingPriceNeverSteams(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ticks := tickSeries(now, []struct {
		odds   float64
		minAgo int
	}{
		{odds: 7.00, minAgo: 20},
		{odds: 7.80, minAgo: 0},
	})

	sig := Evaluate(ticks, now)
	assert.False(t, sig.Steam)
	assert.Zero(t, sig.DropPct)
}

func TestStrengthSaturatesAtHundred(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ticks := tickSeries(now, []struct {
		odds   float64
		minAgo int
	}{
		{odds: 10.00, minAgo: 10},
		{odds: 8.50, minAgo: 0}, // 15% drop
	})

	sig := Evaluate(ticks, now)
	assert.True(t, sig.Steam)
	assert.InDelta(t, 100, sig.Strength, 1e-9)
}

func TestSingleTickHasNothingToCompare(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	sig := Evaluate([]Tick{{Odds: 6.0, ObservedAt: now}}, now)
	assert.False(t, sig.Steam)
	assert.InDelta(t, 6.0, sig.To, 1e-9)
	assert.Zero(t, sig.From)
}
