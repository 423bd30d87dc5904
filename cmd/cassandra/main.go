package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/adapters/apifootball"
	"github.com/XavierBriggs/Cassandra/adapters/theoddsapi"
	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/internal/config"
	"github.com/XavierBriggs/Cassandra/internal/engine"
	"github.com/XavierBriggs/Cassandra/internal/ensemble"
	"github.com/XavierBriggs/Cassandra/internal/logging"
	"github.com/XavierBriggs/Cassandra/internal/neural"
	"github.com/XavierBriggs/Cassandra/internal/scoredist"
	"github.com/XavierBriggs/Cassandra/internal/selector"
	"github.com/XavierBriggs/Cassandra/internal/settle"
	"github.com/XavierBriggs/Cassandra/internal/sharp"
	"github.com/XavierBriggs/Cassandra/internal/store"
	"github.com/XavierBriggs/Cassandra/internal/xg"
	"github.com/XavierBriggs/Cassandra/leagues"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const sharpHistoryTTL = 48 * time.Hour

func main() {
	configPath := flag.String("config", "", "optional config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Init(cfg.Logging.Level, cfg.Logging.Development)
	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("failed to ping database")
	}
	log.Info("connected to postgres")

	opportunityStore := store.New(db, log)
	if err := opportunityStore.EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("failed to ensure schema")
	}

	// Redis accelerates the cache and carries sharp tick histories.
	// Everything it backs degrades to postgres or to no-signal.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unavailable, continuing without it")
			redisClient = nil
		} else {
			log.Info("connected to redis")
		}
	}

	quotas := map[string]int{
		apifootball.ProviderName: cfg.Providers.FootballAPIQuota,
		theoddsapi.ProviderName:  cfg.Providers.OddsAPIQuota,
	}
	budgetMgr := budget.NewManager(db, quotas, log)
	cache := budget.NewCache(db, redisClient, log)

	fixtureClient := apifootball.NewClient(cfg.Providers.FootballAPIKey, budgetMgr, cache, cfg.Providers.MinRequestSpacing, log)
	oddsClient := theoddsapi.NewClient(cfg.Providers.OddsAPIKey, budgetMgr, cache, log)

	registry := leagues.NewDefaultRegistry()

	scoreModel := neural.NewEmpiricalModel()
	if err := trainScoreModel(ctx, opportunityStore, scoreModel, log); err != nil {
		log.WithError(err).Warn("score model training skipped")
	}

	regressor := xg.NewLeastSquaresRegressor()
	if samples, err := opportunityStore.TrainingSamples(ctx, 1000); err != nil {
		log.WithError(err).Warn("regressor warm start skipped")
	} else if regressor.Refit(samples) {
		log.WithField("samples", len(samples)).Info("goals regressor fitted from history")
	}
	estimator := xg.NewEstimator(xg.NewUniformNoise(time.Now().UnixNano()), regressor, log)
	combiner := ensemble.NewCombiner(scoredist.New(), scoreModel, log)
	tracker := sharp.NewTracker(redisClient, sharpHistoryTTL)

	sel := selector.New(registry, opportunityStore, selector.Limits{
		MinDaily: cfg.Selector.MinDailyOpportunities,
		MaxDaily: cfg.Selector.MaxDailyOpportunities,
		TierCaps: map[models.Tier]int{
			models.TierPremium:  cfg.Selector.PremiumMaxDaily,
			models.TierStandard: cfg.Selector.StandardMaxDaily,
			models.TierValue:    cfg.Selector.ValueMaxDaily,
			models.TierBackup:   cfg.Selector.BackupMaxDaily,
		},
	}, log)

	eng := engine.New(engine.Config{
		CycleInterval:  cfg.Engine.CycleInterval,
		FormWindow:     cfg.Engine.FormWindow,
		LookaheadHours: cfg.Engine.LookaheadHours,
	}, fixtureClient, oddsClient, registry, estimator, combiner, tracker, sel, opportunityStore, cache, opportunityStore, log)

	settler := settle.New(opportunityStore, fixtureClient, scoreModel, regressor, redisClient, cfg.Engine.SettleInterval, log)

	eng.Start(ctx)
	settler.Start(ctx)
	log.WithFields(logrus.Fields{
		"cycle_interval": cfg.Engine.CycleInterval,
		"leagues":        registry.Count(),
	}).Info("cassandra started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	settler.Stop()
	eng.Stop()
	log.Info("cassandra stopped")
}

// trainScoreModel warms the empirical score model from settled history so
// a restart does not lose the learned distribution.
func trainScoreModel(ctx context.Context, s *store.Store, model *neural.EmpiricalModel, log *logrus.Logger) error {
	settled, err := s.SettledSince(ctx, time.Now().AddDate(-1, 0, 0))
	if err != nil {
		return err
	}

	results := make([]models.MatchResult, 0, len(settled))
	seen := make(map[string]bool, len(settled))
	for _, opp := range settled {
		// Several opportunities settle against one match; train on the
		// match once. Outcome stores the final score as "H-A"; rows
		// settled without one carry no training signal.
		if seen[opp.MatchID] {
			continue
		}
		var home, away int
		if _, err := fmt.Sscanf(opp.Outcome, "%d-%d", &home, &away); err != nil {
			continue
		}
		seen[opp.MatchID] = true
		results = append(results, models.MatchResult{
			HomeTeam:  opp.HomeTeam,
			AwayTeam:  opp.AwayTeam,
			HomeGoals: home,
			AwayGoals: away,
			Date:      opp.KickoffTime,
		})
	}
	model.Train(results)

	log.WithFields(logrus.Fields{
		"samples":   len(results),
		"available": model.Available(),
	}).Info("score model warmed from settled history")
	return nil
}
