// Package engine runs the evaluation cycle: fixtures in, opportunities
// out. One cycle walks every active league, prices every fixture inside
// the lookahead window, and hands survivors to the selector.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/internal/ensemble"
	"github.com/XavierBriggs/Cassandra/internal/h2h"
	"github.com/XavierBriggs/Cassandra/internal/scoring"
	"github.com/XavierBriggs/Cassandra/internal/selector"
	"github.com/XavierBriggs/Cassandra/internal/sharp"
	"github.com/XavierBriggs/Cassandra/internal/xg"
	"github.com/XavierBriggs/Cassandra/leagues"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	// Bookmaker payout assumed when no exact-score market price exists
	// and the engine has to synthesize one.
	assumedPayout = 0.88

	// Odds events match a fixture when kickoff times agree this closely.
	kickoffTolerance = 6 * time.Hour
)

// OpportunityWriter persists an accepted daily batch.
type OpportunityWriter interface {
	InsertBatch(ctx context.Context, opps []models.Opportunity) error
}

// Pruner drops expired cache rows. Run once per cycle.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// FeatureRecorder persists pre-kickoff feature vectors so the goals
// regressor has labeled samples once results come in.
type FeatureRecorder interface {
	SaveTrainingFeatures(ctx context.Context, matchID string, features contracts.GoalFeatures, now time.Time) error
}

// Config bounds one engine instance.
type Config struct {
	CycleInterval  time.Duration
	FormWindow     int
	LookaheadHours int
}

// Engine wires the full pipeline and owns the polling loop.
type Engine struct {
	cfg       Config
	fixtures  contracts.FixtureProvider
	odds      contracts.OddsProvider
	registry  *leagues.Registry
	estimator *xg.Estimator
	combiner  *ensemble.Combiner
	tracker   *sharp.Tracker
	selector  *selector.Selector
	writer    OpportunityWriter
	pruner    Pruner
	recorder  FeatureRecorder
	log       *logrus.Entry

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(
	cfg Config,
	fixtures contracts.FixtureProvider,
	odds contracts.OddsProvider,
	registry *leagues.Registry,
	estimator *xg.Estimator,
	combiner *ensemble.Combiner,
	tracker *sharp.Tracker,
	sel *selector.Selector,
	writer OpportunityWriter,
	pruner Pruner,
	recorder FeatureRecorder,
	log *logrus.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		fixtures:  fixtures,
		odds:      odds,
		registry:  registry,
		estimator: estimator,
		combiner:  combiner,
		tracker:   tracker,
		selector:  sel,
		writer:    writer,
		pruner:    pruner,
		recorder:  recorder,
		log:       log.WithField("component", "engine"),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the cycle loop. The first cycle runs immediately.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if err := e.RunCycle(ctx); err != nil {
			e.log.WithError(err).Error("initial cycle failed")
		}

		ticker := time.NewTicker(e.cfg.CycleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := e.RunCycle(ctx); err != nil {
					e.log.WithError(err).Error("cycle failed")
				}
			case <-e.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the loop down and waits for the in-flight cycle.
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
}

// RunCycle evaluates every active league once. A match that fails to
// evaluate is logged and skipped; a league whose odds budget is spent
// degrades to synthesized prices rather than ending the cycle.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	fixtures, err := e.fixtures.FixturesByDate(ctx, now)
	if err != nil {
		if err == budget.ErrQuotaExhausted {
			e.log.Warn("fixtures budget exhausted, cycle skipped")
			return nil
		}
		return fmt.Errorf("fetch fixtures: %w", err)
	}

	var candidates []selector.Candidate
	evaluated, failed := 0, 0

	for _, league := range e.registry.Active() {
		leagueFixtures := e.filterFixtures(fixtures, league, now)
		if len(leagueFixtures) == 0 {
			continue
		}

		marketOdds := e.leagueOdds(ctx, league.Key)

		for _, fixture := range leagueFixtures {
			cands, err := e.evaluateFixture(ctx, fixture, league, marketOdds, now)
			if err != nil {
				failed++
				e.log.WithError(err).WithFields(logrus.Fields{
					"fixture": fixture.FixtureID,
					"home":    fixture.HomeTeam,
					"away":    fixture.AwayTeam,
				}).Warn("fixture evaluation failed")
				continue
			}
			evaluated++
			candidates = append(candidates, cands...)
		}
	}

	selected, err := e.selector.SelectDaily(ctx, candidates, now)
	if err != nil {
		return fmt.Errorf("daily selection: %w", err)
	}
	if err := e.writer.InsertBatch(ctx, selected); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}

	if e.pruner != nil {
		if _, err := e.pruner.Prune(ctx); err != nil {
			e.log.WithError(err).Warn("cache prune failed")
		}
	}

	e.log.WithFields(logrus.Fields{
		"evaluated":  evaluated,
		"failed":     failed,
		"candidates": len(candidates),
		"selected":   len(selected),
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Info("cycle complete")
	return nil
}

// filterFixtures keeps a league's fixtures inside the lookahead window.
func (e *Engine) filterFixtures(fixtures []models.Fixture, league leagues.League, now time.Time) []models.Fixture {
	windowEnd := now.Add(time.Duration(e.cfg.LookaheadHours) * time.Hour)
	var out []models.Fixture
	for _, f := range fixtures {
		if f.LeagueID != league.ProviderID {
			continue
		}
		if f.KickoffTime.Before(now) || f.KickoffTime.After(windowEnd) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// leagueOdds fetches a league's market odds, degrading to none when the
// odds budget is spent or the upstream is down.
func (e *Engine) leagueOdds(ctx context.Context, leagueKey string) []models.MatchOdds {
	odds, err := e.odds.MatchOdds(ctx, leagueKey)
	if err != nil {
		level := e.log.WithError(err).WithField("league", leagueKey)
		if err == budget.ErrQuotaExhausted {
			level.Warn("odds budget exhausted, pricing from model only")
		} else {
			level.Warn("odds fetch failed, pricing from model only")
		}
		return nil
	}
	return odds
}

// evaluateFixture runs the full per-match pipeline and returns the
// scored candidates for selection.
func (e *Engine) evaluateFixture(ctx context.Context, fixture models.Fixture, league leagues.League, marketOdds []models.MatchOdds, now time.Time) ([]selector.Candidate, error) {
	match := models.Match{
		MatchID:     fmt.Sprintf("fixture-%d", fixture.FixtureID),
		FixtureID:   fixture.FixtureID,
		HomeTeam:    fixture.HomeTeam,
		AwayTeam:    fixture.AwayTeam,
		HomeTeamID:  fixture.HomeTeamID,
		AwayTeamID:  fixture.AwayTeamID,
		LeagueKey:   league.Key,
		KickoffTime: fixture.KickoffTime,
	}

	homeResults, err := e.fixtures.RecentResults(ctx, fixture.HomeTeamID, e.cfg.FormWindow)
	if err != nil {
		return nil, fmt.Errorf("home form: %w", err)
	}
	awayResults, err := e.fixtures.RecentResults(ctx, fixture.AwayTeamID, e.cfg.FormWindow)
	if err != nil {
		return nil, fmt.Errorf("away form: %w", err)
	}
	homeForm := buildForm(fixture.HomeTeam, fixture.HomeTeamID, homeResults)
	awayForm := buildForm(fixture.AwayTeam, fixture.AwayTeamID, awayResults)

	meetings, err := e.fixtures.HeadToHead(ctx, fixture.HomeTeamID, fixture.AwayTeamID)
	if err != nil {
		// H2H is enrichment; the baseline still stands without it.
		e.log.WithError(err).WithField("fixture", fixture.FixtureID).Debug("h2h unavailable")
		meetings = nil
	}
	record := models.HeadToHeadRecord{TeamA: fixture.HomeTeam, TeamB: fixture.AwayTeam, Meetings: meetings}
	analysis := h2h.Analyze(record)

	injuriesKnown := e.injuriesKnown(ctx, fixture)
	lineupsConfirmed := e.lineupsConfirmed(ctx, fixture)

	estimate := e.estimator.Estimate(match, homeForm, awayForm, record)

	if e.recorder != nil {
		if err := e.recorder.SaveTrainingFeatures(ctx, match.MatchID, estimate.Features, now); err != nil {
			e.log.WithError(err).WithField("fixture", fixture.FixtureID).Debug("training features not saved")
		}
	}

	eventOdds := matchEventOdds(marketOdds, fixture)
	signals := e.observeSharp(ctx, match, eventOdds, now)

	pred := e.combiner.Predict(ensemble.Input{
		Match:        match,
		LambdaHome:   estimate.HomeXG,
		LambdaAway:   estimate.AwayXG,
		H2HAnalysis:  analysis,
		H2HRecord:    record,
		HomeIsTeamA:  true,
		SharpSignals: signals,
	})

	return e.buildCandidates(match, league, estimate, pred, eventOdds, homeForm, awayForm, record, injuriesKnown, lineupsConfirmed), nil
}

func (e *Engine) injuriesKnown(ctx context.Context, fixture models.Fixture) bool {
	for _, teamID := range []int{fixture.HomeTeamID, fixture.AwayTeamID} {
		if _, err := e.fixtures.Injuries(ctx, teamID); err != nil {
			return false
		}
	}
	return true
}

func (e *Engine) lineupsConfirmed(ctx context.Context, fixture models.Fixture) bool {
	status, err := e.fixtures.Lineups(ctx, fixture.FixtureID)
	return err == nil && status.Confirmed
}

// observeSharp records odds ticks for the fixture's 1X2 prices and maps
// any steam onto the scorelines of the steamed outcome.
func (e *Engine) observeSharp(ctx context.Context, match models.Match, eventOdds []models.MatchOdds, now time.Time) map[string]sharp.Signal {
	if e.tracker == nil || len(eventOdds) == 0 {
		return nil
	}

	signals := make(map[string]sharp.Signal)
	for _, odd := range eventOdds {
		if odd.Market != "h2h" {
			continue
		}
		sig, err := e.tracker.Observe(ctx, match.MatchID, odd.Selection, odd.Price, now)
		if err != nil {
			e.log.WithError(err).Debug("sharp tracking unavailable")
			return nil
		}
		if !sig.Steam {
			continue
		}
		for _, score := range outcomeScorelines(odd.Selection, match) {
			signals[score] = sig
		}
	}
	if len(signals) == 0 {
		return nil
	}
	return signals
}

// outcomeScorelines expands a 1X2 selection into its scoreline keys.
func outcomeScorelines(selection string, match models.Match) []string {
	const span = 5 // steam rarely says anything about 6+ goal scores
	var out []string
	for h := 0; h <= span; h++ {
		for a := 0; a <= span; a++ {
			switch {
			case teamNamesOverlap(selection, match.HomeTeam) && h > a,
				strings.EqualFold(selection, "draw") && h == a,
				teamNamesOverlap(selection, match.AwayTeam) && a > h:
				out = append(out, fmt.Sprintf("%d-%d", h, a))
			}
		}
	}
	return out
}

// buildCandidates produces the selector inputs: the best exact-score
// line, plus totals lines when real market prices exist.
func (e *Engine) buildCandidates(
	match models.Match,
	league leagues.League,
	estimate xg.Estimate,
	pred ensemble.Prediction,
	eventOdds []models.MatchOdds,
	homeForm, awayForm models.TeamForm,
	record models.HeadToHeadRecord,
	injuriesKnown, lineupsConfirmed bool,
) []selector.Candidate {
	var out []selector.Candidate

	formGames := homeForm.SampleSize()
	if awayForm.SampleSize() < formGames {
		formGames = awayForm.SampleSize()
	}

	runnerUp := 0.0
	if len(pred.Candidates) > 1 {
		runnerUp = pred.Candidates[1].Probability
	}

	for _, cand := range pred.Candidates {
		price, source := e.exactScorePrice(cand, eventOdds, estimate.DataSource)
		edge := (cand.Probability*price - 1) * 100
		if edge <= 0 {
			continue
		}

		confidence := scoring.Score(scoring.Inputs{
			EdgePct:          edge,
			Odds:             price,
			FormGames:        formGames,
			H2HMeetings:      len(record.Meetings),
			LineupsConfirmed: lineupsConfirmed,
			InjuriesKnown:    injuriesKnown,
			TopProbability:   pred.Candidates[0].Probability,
			RunnerUpProb:     runnerUp,
			LeagueMultiplier: league.TierMultiplier,
		})

		out = append(out, selector.Candidate{
			Match:      match,
			Market:     selector.MarketExactScore,
			Selection:  "Exact Score " + cand.Score(),
			Odds:       price,
			EdgePct:    edge,
			Confidence: confidence,
			TotalXG:    estimate.TotalXG,
			DataSource: source,
		})
	}

	out = append(out, e.totalsCandidates(match, league, estimate, pred, eventOdds, formGames, len(record.Meetings), injuriesKnown, lineupsConfirmed)...)
	return out
}

// exactScorePrice returns the market price for a scoreline when a
// bookmaker offers one, otherwise a synthesized price derived from the
// analytic baseline with a standard book margin.
func (e *Engine) exactScorePrice(cand models.ScoreCandidate, eventOdds []models.MatchOdds, source models.DataSource) (float64, models.DataSource) {
	want := "Exact Score " + cand.Score()
	for _, odd := range eventOdds {
		if odd.Market == "correct_score" && odd.Selection == want {
			return odd.Price, source
		}
	}

	// No market price: price the analytic baseline with a margin. The
	// edge then measures what the enrichment layers add on top.
	if cand.Sources.Poisson <= 0 {
		return cand.ImpliedOdds * assumedPayout, models.SourceSynthetic
	}
	price := (1 / cand.Sources.Poisson) * assumedPayout
	if source == models.SourceReal {
		source = models.SourceEstimated
	}
	return price, source
}

// totalsCandidates builds over/under 2.5 lines from real market prices.
// Without a market price totals carry no edge worth acting on.
func (e *Engine) totalsCandidates(
	match models.Match,
	league leagues.League,
	estimate xg.Estimate,
	pred ensemble.Prediction,
	eventOdds []models.MatchOdds,
	formGames, meetings int,
	injuriesKnown, lineupsConfirmed bool,
) []selector.Candidate {
	var out []selector.Candidate

	lines := []struct {
		selection string
		modelProb float64
	}{
		{"Over 2.5", pred.Markets.Over2p5},
		{"Under 2.5", 1 - pred.Markets.Over2p5},
	}

	for _, line := range lines {
		price, ok := findOdds(eventOdds, "totals", line.selection)
		if !ok {
			continue
		}
		edge := (line.modelProb*price - 1) * 100
		if edge <= 0 {
			continue
		}

		confidence := scoring.Score(scoring.Inputs{
			EdgePct:          edge,
			Odds:             price,
			FormGames:        formGames,
			H2HMeetings:      meetings,
			LineupsConfirmed: lineupsConfirmed,
			InjuriesKnown:    injuriesKnown,
			TopProbability:   line.modelProb,
			RunnerUpProb:     1 - line.modelProb,
			LeagueMultiplier: league.TierMultiplier,
		})

		out = append(out, selector.Candidate{
			Match:      match,
			Market:     selector.MarketTotals,
			Selection:  line.selection,
			Odds:       price,
			EdgePct:    edge,
			Confidence: confidence,
			TotalXG:    estimate.TotalXG,
			DataSource: models.SourceReal,
		})
	}
	return out
}

func findOdds(eventOdds []models.MatchOdds, market, selection string) (float64, bool) {
	for _, odd := range eventOdds {
		if odd.Market == market && odd.Selection == selection {
			return odd.Price, true
		}
	}
	return 0, false
}

// matchEventOdds picks the odds rows belonging to one fixture by team
// names and kickoff proximity.
func matchEventOdds(marketOdds []models.MatchOdds, fixture models.Fixture) []models.MatchOdds {
	var out []models.MatchOdds
	byEvent := make(map[string][]models.MatchOdds)
	for _, odd := range marketOdds {
		byEvent[odd.MatchID] = append(byEvent[odd.MatchID], odd)
	}

	for _, rows := range byEvent {
		if len(rows) == 0 {
			continue
		}
		gap := rows[0].CommenceTime.Sub(fixture.KickoffTime)
		if gap < 0 {
			gap = -gap
		}
		if gap > kickoffTolerance {
			continue
		}
		if !oddsNameMatch(rows, fixture) {
			continue
		}
		out = append(out, rows...)
	}
	return out
}

// oddsNameMatch requires at least one selection naming the home or away
// team, which the 1X2 market always does.
func oddsNameMatch(rows []models.MatchOdds, fixture models.Fixture) bool {
	for _, odd := range rows {
		if odd.Market != "h2h" {
			continue
		}
		if teamNamesOverlap(odd.Selection, fixture.HomeTeam) || teamNamesOverlap(odd.Selection, fixture.AwayTeam) {
			return true
		}
	}
	return false
}

// teamNamesOverlap tolerates provider naming drift ("Man City" vs
// "Manchester City") by substring comparison in both directions.
func teamNamesOverlap(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return la == lb || strings.Contains(la, lb) || strings.Contains(lb, la)
}

func buildForm(team string, teamID int, results []models.MatchResult) models.TeamForm {
	form := models.TeamForm{TeamName: team, TeamID: teamID, Games: results}
	if len(results) == 0 {
		return form
	}

	var goals, conceded, wins, cleanSheets int
	for _, r := range results {
		gf, ga := r.HomeGoals, r.AwayGoals
		if r.AwayTeam == team {
			gf, ga = ga, gf
		}
		goals += gf
		conceded += ga
		if gf > ga {
			wins++
		}
		if ga == 0 {
			cleanSheets++
		}
	}

	n := float64(len(results))
	form.GoalsPerGame = float64(goals) / n
	form.ConcededPerGame = float64(conceded) / n
	form.WinRate = float64(wins) / n
	form.CleanSheetRate = float64(cleanSheets) / n
	return form
}
