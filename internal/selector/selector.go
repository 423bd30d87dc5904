// Package selector turns scored candidates into the daily opportunity
// batch: tier gates, priority ordering, caps, duplicate suppression and
// progressive relaxation when a day runs thin.
package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/leagues"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// dedupWindow is how far back a pending opportunity blocks a duplicate.
const dedupWindow = 24 * time.Hour

// Candidate is one fully scored selection awaiting admission.
type Candidate struct {
	Match      models.Match
	Market     string
	Selection  string
	Odds       float64 // bookmaker decimal odds
	EdgePct    float64
	Confidence float64
	TotalXG    float64
	DataSource models.DataSource
}

// History is the selector's view of the opportunity store: duplicate
// suppression plus what the day has already admitted, so caps hold
// across cycles, not just within one.
type History interface {
	HasPendingDuplicate(ctx context.Context, dedupKey string, since time.Time) (bool, error)
	DailyTierCounts(ctx context.Context, now time.Time) (map[models.Tier]int, error)
}

// Limits bounds the daily batch.
type Limits struct {
	MinDaily int
	MaxDaily int
	TierCaps map[models.Tier]int
}

// Pass is an immutable relaxation stage: which tiers it admits. Later
// passes only run while the batch is under MinDaily.
type Pass struct {
	name  string
	tiers map[models.Tier]bool
}

func newPass(name string, tiers ...models.Tier) Pass {
	set := make(map[models.Tier]bool, len(tiers))
	for _, t := range tiers {
		set[t] = true
	}
	return Pass{name: name, tiers: set}
}

// DefaultPasses is the strict-to-loose relaxation schedule.
func DefaultPasses() []Pass {
	return []Pass{
		newPass("strict", models.TierPremium, models.TierStandard),
		newPass("value", models.TierValue),
		newPass("backup", models.TierBackup),
	}
}

// Selector owns admission for one evaluation day.
type Selector struct {
	registry *leagues.Registry
	history  History
	limits   Limits
	passes   []Pass
	log      *logrus.Entry
}

func New(registry *leagues.Registry, history History, limits Limits, log *logrus.Logger) *Selector {
	return &Selector{
		registry: registry,
		history:  history,
		limits:   limits,
		passes:   DefaultPasses(),
		log:      log.WithField("component", "selector"),
	}
}

// SelectDaily admits candidates into the day's batch. Caps are seeded
// with what the day has already accepted, so a later cycle only fills
// remaining headroom. Re-running with the same inputs after a
// successful write yields an empty batch, since every admitted
// candidate is now a pending duplicate.
func (s *Selector) SelectDaily(ctx context.Context, candidates []Candidate, now time.Time) ([]models.Opportunity, error) {
	best := bestPerMatch(candidates)
	ordered := s.orderByPriority(best)

	stagedByTier := make(map[models.Tier][]Candidate)
	for _, c := range ordered {
		tier := LadderFor(c.Market, c.Selection).Classify(c.EdgePct, c.Confidence)
		if tier == models.TierRejected {
			continue
		}
		stagedByTier[tier] = append(stagedByTier[tier], c)
	}

	tierCounts, err := s.history.DailyTierCounts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("daily tier counts: %w", err)
	}
	if tierCounts == nil {
		tierCounts = make(map[models.Tier]int)
	}
	dayTotal := 0
	for _, n := range tierCounts {
		dayTotal += n
	}

	accepted := make([]models.Opportunity, 0, s.limits.MaxDaily)
	seen := make(map[string]bool)

	tierOrder := []models.Tier{models.TierPremium, models.TierStandard, models.TierValue, models.TierBackup}

	for passIdx, pass := range s.passes {
		// Relaxation passes only run while the day is thin.
		if passIdx > 0 && dayTotal >= s.limits.MinDaily {
			break
		}
		for _, tier := range tierOrder {
			if !pass.tiers[tier] {
				continue
			}
			for _, cand := range stagedByTier[tier] {
				if dayTotal >= s.limits.MaxDaily {
					break
				}
				if limit, ok := s.limits.TierCaps[tier]; ok && tierCounts[tier] >= limit {
					break
				}

				opp := s.build(cand, tier, now)
				key := opp.DedupKey()
				if seen[key] {
					continue
				}
				dup, err := s.history.HasPendingDuplicate(ctx, key, now.Add(-dedupWindow))
				if err != nil {
					return nil, fmt.Errorf("dedup lookup for %s: %w", key, err)
				}
				if dup {
					s.log.WithField("key", key).Debug("duplicate suppressed")
					continue
				}

				seen[key] = true
				tierCounts[tier]++
				dayTotal++
				accepted = append(accepted, opp)
			}
		}
	}

	for i := range accepted {
		accepted[i].DailyRank = i + 1
	}

	s.log.WithFields(logrus.Fields{
		"candidates":   len(candidates),
		"matches":      len(best),
		"accepted":     len(accepted),
		"day_total":    dayTotal,
		"day_premium":  tierCounts[models.TierPremium],
		"day_standard": tierCounts[models.TierStandard],
		"day_value":    tierCounts[models.TierValue],
		"day_backup":   tierCounts[models.TierBackup],
	}).Info("daily selection complete")

	return accepted, nil
}

// bestPerMatch keeps the highest-edge candidate for each match.
func bestPerMatch(candidates []Candidate) []Candidate {
	byMatch := make(map[string]Candidate)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing, ok := byMatch[c.Match.MatchID]
		if !ok {
			order = append(order, c.Match.MatchID)
			byMatch[c.Match.MatchID] = c
			continue
		}
		if c.EdgePct > existing.EdgePct {
			byMatch[c.Match.MatchID] = c
		}
	}

	out := make([]Candidate, 0, len(byMatch))
	for _, id := range order {
		out = append(out, byMatch[id])
	}
	return out
}

// orderByPriority sorts by expected goals weighted by league tier, best
// first. Insertion sort keeps the original order for equal priorities.
func (s *Selector) orderByPriority(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && s.priority(out[j]) > s.priority(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (s *Selector) priority(c Candidate) float64 {
	return c.TotalXG * s.registry.TierMultiplier(c.Match.LeagueKey)
}

// build assembles the persisted opportunity. Quality weights edge over
// confidence so ranking tracks expected value first.
func (s *Selector) build(c Candidate, tier models.Tier, now time.Time) models.Opportunity {
	return models.Opportunity{
		ID:             uuid.NewString(),
		MatchID:        c.Match.MatchID,
		HomeTeam:       c.Match.HomeTeam,
		AwayTeam:       c.Match.AwayTeam,
		League:         c.Match.LeagueKey,
		KickoffTime:    c.Match.KickoffTime,
		Market:         c.Market,
		Selection:      c.Selection,
		Odds:           c.Odds,
		EdgePercentage: c.EdgePct,
		Confidence:     c.Confidence,
		Tier:           tier,
		QualityScore:   0.7*c.EdgePct + 0.3*c.Confidence,
		Status:         models.StatusPending,
		DataSource:     c.DataSource,
		CreatedAt:      now,
	}
}
