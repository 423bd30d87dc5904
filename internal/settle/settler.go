// Package settle grades pending opportunities once their match has
// finished and feeds the final scores back into model training.
package settle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/internal/selector"
	"github.com/XavierBriggs/Cassandra/internal/xg"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	// A football match is safely over this long after kickoff; polling
	// for a result any earlier burns budget on in-play responses.
	matchDuration = 150 * time.Minute

	// Settled opportunities are announced on this stream for downstream
	// consumers (notifiers, accounting).
	settledStream = "opportunities.settled"

	// How many of the most recent settled samples feed a refit.
	refitWindow = 1000
)

// Store is the slice of the opportunity store the settler needs.
type Store interface {
	PendingKickedOff(ctx context.Context, now time.Time) ([]models.Opportunity, error)
	UpdateSettlement(ctx context.Context, id string, status models.Status, outcome string, profitLoss float64, settledAt time.Time) error
	RecordTrainingResult(ctx context.Context, matchID string, homeGoals, awayGoals int, settledAt time.Time) error
	TrainingSamples(ctx context.Context, limit int) ([]xg.TrainingSample, error)
}

// ResultSource resolves a fixture's final score. A nil result with nil
// error means the fixture has not finished.
type ResultSource interface {
	FixtureResult(ctx context.Context, fixtureID int) (*models.MatchResult, error)
}

// Trainer consumes settled results for model fitting.
type Trainer interface {
	Train(results []models.MatchResult)
}

// Fitter refits the goals regressor from accumulated samples.
type Fitter interface {
	Refit(samples []xg.TrainingSample) bool
}

// Settler polls for pending opportunities whose match is over, grades
// them, and publishes each settlement.
type Settler struct {
	store        Store
	source       ResultSource
	trainer      Trainer
	fitter       Fitter        // nil disables regressor refits
	redis        *redis.Client // nil disables stream publishing
	pollInterval time.Duration
	now          func() time.Time
	log          *logrus.Entry

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(store Store, source ResultSource, trainer Trainer, fitter Fitter, redisClient *redis.Client, pollInterval time.Duration, log *logrus.Logger) *Settler {
	return &Settler{
		store:        store,
		source:       source,
		trainer:      trainer,
		fitter:       fitter,
		redis:        redisClient,
		pollInterval: pollInterval,
		now:          time.Now,
		log:          log.WithField("component", "settler"),
		stopChan:     make(chan struct{}),
	}
}

// SetNow overrides the clock.
func (s *Settler) SetNow(now func() time.Time) {
	s.now = now
}

// Start launches the polling loop. The first pass runs immediately.
func (s *Settler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.RunCycle(ctx); err != nil {
			s.log.WithError(err).Error("initial settlement pass failed")
		}

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.RunCycle(ctx); err != nil {
					s.log.WithError(err).Error("settlement pass failed")
				}
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the loop down and waits for the in-flight pass.
func (s *Settler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// RunCycle grades every pending opportunity whose match has been over
// long enough to have a final score. One unresolvable match does not
// block the rest; an exhausted request budget ends the pass.
func (s *Settler) RunCycle(ctx context.Context) error {
	now := s.now().UTC()

	pending, err := s.store.PendingKickedOff(ctx, now.Add(-matchDuration))
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	byFixture := make(map[int][]models.Opportunity)
	order := make([]int, 0)
	for _, opp := range pending {
		var fixtureID int
		if _, err := fmt.Sscanf(opp.MatchID, "fixture-%d", &fixtureID); err != nil {
			s.log.WithField("match_id", opp.MatchID).Warn("unparseable match id, skipping")
			continue
		}
		if _, seen := byFixture[fixtureID]; !seen {
			order = append(order, fixtureID)
		}
		byFixture[fixtureID] = append(byFixture[fixtureID], opp)
	}

	var settled int
	var trained []models.MatchResult
	for _, fixtureID := range order {
		result, err := s.source.FixtureResult(ctx, fixtureID)
		if err == budget.ErrQuotaExhausted {
			s.log.Warn("result budget exhausted, deferring remaining settlements")
			break
		}
		if err != nil {
			s.log.WithError(err).WithField("fixture_id", fixtureID).Warn("result lookup failed")
			continue
		}
		if result == nil {
			continue
		}

		for _, opp := range byFixture[fixtureID] {
			status := Grade(opp, *result)
			outcome := fmt.Sprintf("%d-%d", result.HomeGoals, result.AwayGoals)
			if err := s.store.UpdateSettlement(ctx, opp.ID, status, outcome, profitLoss(opp, status), now); err != nil {
				s.log.WithError(err).WithField("id", opp.ID).Error("settlement write failed")
				continue
			}
			settled++
			s.publish(ctx, opp.ID, status, outcome, now)
		}
		matchID := fmt.Sprintf("fixture-%d", fixtureID)
		if err := s.store.RecordTrainingResult(ctx, matchID, result.HomeGoals, result.AwayGoals, now); err != nil {
			s.log.WithError(err).WithField("match_id", matchID).Warn("training result write failed")
		}
		trained = append(trained, *result)
	}

	if s.trainer != nil && len(trained) > 0 {
		s.trainer.Train(trained)
	}
	if s.fitter != nil && len(trained) > 0 {
		s.refit(ctx)
	}
	if settled > 0 {
		s.log.WithFields(logrus.Fields{
			"settled": settled,
			"matches": len(trained),
		}).Info("settlement pass complete")
	}
	return nil
}

// refit reloads the settled sample set and hands it to the regressor.
// The fitter refuses thin samples itself, so early days are a no-op.
func (s *Settler) refit(ctx context.Context) {
	samples, err := s.store.TrainingSamples(ctx, refitWindow)
	if err != nil {
		s.log.WithError(err).Warn("training sample load failed")
		return
	}
	if s.fitter.Refit(samples) {
		s.log.WithField("samples", len(samples)).Info("goals regressor refit")
	}
}

// Grade decides the status of one opportunity given the final score.
// Selections the grader cannot interpret are voided rather than guessed.
func Grade(opp models.Opportunity, result models.MatchResult) models.Status {
	switch opp.Market {
	case selector.MarketExactScore:
		predicted := strings.TrimPrefix(opp.Selection, "Exact Score ")
		if predicted == fmt.Sprintf("%d-%d", result.HomeGoals, result.AwayGoals) {
			return models.StatusWon
		}
		return models.StatusLost

	case selector.MarketTotals:
		total := float64(result.HomeGoals + result.AwayGoals)
		var line float64
		if _, err := fmt.Sscanf(opp.Selection, "Over %f", &line); err == nil {
			if total > line {
				return models.StatusWon
			}
			return models.StatusLost
		}
		if _, err := fmt.Sscanf(opp.Selection, "Under %f", &line); err == nil {
			if total < line {
				return models.StatusWon
			}
			return models.StatusLost
		}
		return models.StatusVoid

	default:
		return models.StatusVoid
	}
}

// profitLoss assumes unit stakes. Voids return the stake.
func profitLoss(opp models.Opportunity, status models.Status) float64 {
	switch status {
	case models.StatusWon:
		return opp.Odds - 1
	case models.StatusLost:
		return -1
	default:
		return 0
	}
}

func (s *Settler) publish(ctx context.Context, id string, status models.Status, outcome string, settledAt time.Time) {
	if s.redis == nil {
		return
	}
	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: settledStream,
		Values: map[string]interface{}{
			"id":         id,
			"status":     string(status),
			"outcome":    outcome,
			"settled_at": settledAt.Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		s.log.WithError(err).WithField("id", id).Warn("stream publish failed")
	}
}
