// Package sharp watches odds movement per selection and flags steam:
// fast price drops that indicate informed money arriving.
package sharp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// A selection is steamed when its decimal odds fall by at least
	// this fraction inside the velocity window.
	steamDropThreshold = 0.02

	// Only movement inside this window counts; a slow drift over a day
	// is market noise, not sharp action.
	velocityWindow = 45 * time.Minute

	// Drop at which the strength indicator saturates at 100.
	saturationDrop = 0.06

	maxTicksPerKey = 24
)

// Tick is one observed price for a selection.
type Tick struct {
	Odds       float64   `json:"odds"`
	ObservedAt time.Time `json:"observed_at"`
}

// Signal is the steam verdict for a selection at observation time.
type Signal struct {
	Steam    bool
	DropPct  float64 // fractional drop over the window, 0 when rising
	Strength float64 // 0-100 indicator
	From     float64 // odds at window start
	To       float64 // current odds
}

// Tracker keeps short tick histories in Redis and evaluates steam on
// each observation. Histories expire with the fixture.
type Tracker struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewTracker(redisClient *redis.Client, historyTTL time.Duration) *Tracker {
	return &Tracker{redis: redisClient, ttl: historyTTL}
}

// Observe appends a price tick for (matchID, selection) and returns the
// current steam signal. A nil Redis client degrades to a quiet signal.
func (t *Tracker) Observe(ctx context.Context, matchID, selection string, odds float64, now time.Time) (Signal, error) {
	if t.redis == nil || odds <= 1.0 {
		return Signal{To: odds}, nil
	}

	key := t.buildKey(matchID, selection)

	ticks, err := t.loadTicks(ctx, key)
	if err != nil {
		return Signal{To: odds}, err
	}

	ticks = append(ticks, Tick{Odds: odds, ObservedAt: now})
	if len(ticks) > maxTicksPerKey {
		ticks = ticks[len(ticks)-maxTicksPerKey:]
	}

	data, err := json.Marshal(ticks)
	if err != nil {
		return Signal{To: odds}, fmt.Errorf("marshal ticks: %w", err)
	}
	if err := t.redis.Set(ctx, key, data, t.ttl).Err(); err != nil {
		return Signal{To: odds}, fmt.Errorf("redis set: %w", err)
	}

	return Evaluate(ticks, now), nil
}

// Evaluate computes the steam signal from a tick history. The reference
// price is the oldest tick still inside the velocity window; with fewer
// than two in-window ticks there is nothing to compare.
func Evaluate(ticks []Tick, now time.Time) Signal {
	if len(ticks) == 0 {
		return Signal{}
	}

	current := ticks[len(ticks)-1]
	sig := Signal{To: current.Odds}

	cutoff := now.Add(-velocityWindow)
	var reference *Tick
	for i := range ticks[:len(ticks)-1] {
		if !ticks[i].ObservedAt.Before(cutoff) {
			reference = &ticks[i]
			break
		}
	}
	if reference == nil || reference.Odds <= 0 {
		return sig
	}

	sig.From = reference.Odds
	drop := (reference.Odds - current.Odds) / reference.Odds
	if drop <= 0 {
		return sig
	}

	sig.DropPct = drop
	if drop >= steamDropThreshold {
		sig.Steam = true
		sig.Strength = drop / saturationDrop * 100
		if sig.Strength > 100 {
			sig.Strength = 100
		}
	}
	return sig
}

// loadTicks reads the stored tick history for a key; a missing key is
// an empty history, not an error.
func (t *Tracker) loadTicks(ctx context.Context, key string) ([]Tick, error) {
	data, err := t.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var ticks []Tick
	if err := json.Unmarshal(data, &ticks); err != nil {
		return nil, fmt.Errorf("unmarshal ticks: %w", err)
	}
	return ticks, nil
}

func (t *Tracker) buildKey(matchID, selection string) string {
	return fmt.Sprintf("sharp:ticks:%s:%s", matchID, selection)
}
