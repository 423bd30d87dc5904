package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/internal/ensemble"
	"github.com/XavierBriggs/Cassandra/internal/scoredist"
	"github.com/XavierBriggs/Cassandra/internal/selector"
	"github.com/XavierBriggs/Cassandra/internal/xg"
	"github.com/XavierBriggs/Cassandra/leagues"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
	"github.com/XavierBriggs/Cassandra/pkg/testutil"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeFixtures struct {
	fixtures    []models.Fixture
	results     map[int][]models.MatchResult
	h2h         []models.MatchResult
	failTeamID  int
	fixturesErr error
}

func (f *fakeFixtures) FixturesByDate(context.Context, time.Time) ([]models.Fixture, error) {
	if f.fixturesErr != nil {
		return nil, f.fixturesErr
	}
	return f.fixtures, nil
}

func (f *fakeFixtures) RecentResults(_ context.Context, teamID, _ int) ([]models.MatchResult, error) {
	if teamID == f.failTeamID {
		return nil, fmt.Errorf("team %d stats unavailable", teamID)
	}
	return f.results[teamID], nil
}

func (f *fakeFixtures) HeadToHead(context.Context, int, int) ([]models.MatchResult, error) {
	return f.h2h, nil
}

func (f *fakeFixtures) Injuries(_ context.Context, teamID int) (*models.InjuryReport, error) {
	return &models.InjuryReport{TeamID: teamID}, nil
}

func (f *fakeFixtures) Lineups(_ context.Context, fixtureID int) (*models.LineupStatus, error) {
	return &models.LineupStatus{FixtureID: fixtureID, Confirmed: true}, nil
}

type fakeOdds struct {
	odds []models.MatchOdds
	err  error
}

func (f *fakeOdds) MatchOdds(context.Context, string) ([]models.MatchOdds, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.odds, nil
}

type memoryWriter struct {
	batches [][]models.Opportunity
}

func (m *memoryWriter) InsertBatch(_ context.Context, opps []models.Opportunity) error {
	m.batches = append(m.batches, opps)
	return nil
}

type noPending struct{}

func (noPending) HasPendingDuplicate(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (noPending) DailyTierCounts(context.Context, time.Time) (map[models.Tier]int, error) {
	return nil, nil
}

type recordingFeatures struct {
	byMatch map[string]contracts.GoalFeatures
}

func (r *recordingFeatures) SaveTrainingFeatures(_ context.Context, matchID string, f contracts.GoalFeatures, _ time.Time) error {
	if r.byMatch == nil {
		r.byMatch = make(map[string]contracts.GoalFeatures)
	}
	r.byMatch[matchID] = f
	return nil
}

func newTestEngine(fixtures *fakeFixtures, odds *fakeOdds, writer *memoryWriter) *Engine {
	log := testLogger()
	registry := leagues.NewDefaultRegistry()
	sel := selector.New(registry, noPending{}, selector.Limits{
		MinDaily: 1,
		MaxDaily: 30,
		TierCaps: map[models.Tier]int{
			models.TierPremium:  8,
			models.TierStandard: 10,
			models.TierValue:    12,
			models.TierBackup:   8,
		},
	}, log)

	return New(
		Config{CycleInterval: time.Hour, FormWindow: 6, LookaheadHours: 48},
		fixtures,
		odds,
		registry,
		xg.NewEstimator(xg.FixedNoise{Value: 1.0}, nil, log),
		ensemble.NewCombiner(scoredist.New(), nil, log),
		nil,
		sel,
		writer,
		nil,
		nil,
		log,
	)
}

func TestCycleProducesOpportunities(t *testing.T) {
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	fixtures := &fakeFixtures{
		fixtures: []models.Fixture{testutil.PremierLeagueFixture(1001, kickoff)},
		results: map[int][]models.MatchResult{
			42: testutil.WinningRun("Arsenal", 6, kickoff),
			49: testutil.LosingRun("Chelsea", 6, kickoff),
		},
		h2h: testutil.OneSidedH2H("Arsenal", "Chelsea", 3, 0, 5, kickoff),
	}
	writer := &memoryWriter{}
	e := newTestEngine(fixtures, &fakeOdds{}, writer)

	require.NoError(t, e.RunCycle(context.Background()))
	require.Len(t, writer.batches, 1)
	require.NotEmpty(t, writer.batches[0])

	opp := writer.batches[0][0]
	assert.Equal(t, "Arsenal", opp.HomeTeam)
	assert.Equal(t, "soccer_epl", opp.League)
	assert.Equal(t, models.StatusPending, opp.Status)
	assert.NotEqual(t, models.TierRejected, opp.Tier)
	// No market odds were available, so nothing may claim "real".
	assert.NotEqual(t, models.SourceReal, opp.DataSource)
}

func TestCycleSavesTrainingFeatures(t *testing.T) {
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	fixtures := &fakeFixtures{
		fixtures: []models.Fixture{testutil.PremierLeagueFixture(1001, kickoff)},
		results: map[int][]models.MatchResult{
			42: testutil.WinningRun("Arsenal", 6, kickoff),
			49: testutil.LosingRun("Chelsea", 6, kickoff),
		},
		h2h: testutil.OneSidedH2H("Arsenal", "Chelsea", 3, 0, 5, kickoff),
	}
	recorder := &recordingFeatures{}
	e := newTestEngine(fixtures, &fakeOdds{}, &memoryWriter{})
	e.recorder = recorder

	require.NoError(t, e.RunCycle(context.Background()))

	require.Contains(t, recorder.byMatch, "fixture-1001")
	f := recorder.byMatch["fixture-1001"]
	assert.Greater(t, f.HomeGoalsPerGame, 0.0)
	assert.Greater(t, f.AwayConcededPerGame, 0.0)
}

func TestFixtureFailureIsolated(t *testing.T) {
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	broken := testutil.PremierLeagueFixture(1002, kickoff)
	broken.HomeTeam = "Leeds"
	broken.HomeTeamID = 63

	fixtures := &fakeFixtures{
		fixtures: []models.Fixture{testutil.PremierLeagueFixture(1001, kickoff), broken},
		results: map[int][]models.MatchResult{
			42: testutil.WinningRun("Arsenal", 6, kickoff),
			49: testutil.LosingRun("Chelsea", 6, kickoff),
		},
		h2h:        testutil.OneSidedH2H("Arsenal", "Chelsea", 3, 0, 5, kickoff),
		failTeamID: 63,
	}
	writer := &memoryWriter{}
	e := newTestEngine(fixtures, &fakeOdds{}, writer)

	// The broken fixture must not sink the healthy one.
	require.NoError(t, e.RunCycle(context.Background()))
	require.Len(t, writer.batches, 1)
	require.NotEmpty(t, writer.batches[0])
	for _, opp := range writer.batches[0] {
		assert.Equal(t, "Arsenal", opp.HomeTeam)
	}
}

func TestOddsQuotaExhaustionDegrades(t *testing.T) {
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	fixtures := &fakeFixtures{
		fixtures: []models.Fixture{testutil.PremierLeagueFixture(1001, kickoff)},
		results: map[int][]models.MatchResult{
			42: testutil.WinningRun("Arsenal", 6, kickoff),
			49: testutil.LosingRun("Chelsea", 6, kickoff),
		},
		h2h: testutil.OneSidedH2H("Arsenal", "Chelsea", 3, 0, 5, kickoff),
	}
	writer := &memoryWriter{}
	e := newTestEngine(fixtures, &fakeOdds{err: budget.ErrQuotaExhausted}, writer)

	require.NoError(t, e.RunCycle(context.Background()))
	require.Len(t, writer.batches, 1)
	assert.NotEmpty(t, writer.batches[0])
}

func TestFixtureQuotaExhaustionSkipsCycle(t *testing.T) {
	writer := &memoryWriter{}
	e := newTestEngine(&fakeFixtures{fixturesErr: budget.ErrQuotaExhausted}, &fakeOdds{}, writer)

	require.NoError(t, e.RunCycle(context.Background()))
	assert.Empty(t, writer.batches)
}

func TestPastFixturesIgnored(t *testing.T) {
	kickoff := time.Now().UTC().Add(-2 * time.Hour)
	fixtures := &fakeFixtures{
		fixtures: []models.Fixture{testutil.PremierLeagueFixture(1001, kickoff)},
		results: map[int][]models.MatchResult{
			42: testutil.WinningRun("Arsenal", 6, kickoff),
			49: testutil.LosingRun("Chelsea", 6, kickoff),
		},
	}
	writer := &memoryWriter{}
	e := newTestEngine(fixtures, &fakeOdds{}, writer)

	require.NoError(t, e.RunCycle(context.Background()))
	require.Len(t, writer.batches, 1)
	assert.Empty(t, writer.batches[0])
}

func TestBuildForm(t *testing.T) {
	kickoff := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)
	results := []models.MatchResult{
		{HomeTeam: "Arsenal", AwayTeam: "X", HomeGoals: 3, AwayGoals: 0, Date: kickoff.AddDate(0, 0, -7)},
		{HomeTeam: "Y", AwayTeam: "Arsenal", HomeGoals: 1, AwayGoals: 1, Date: kickoff.AddDate(0, 0, -14)},
		{HomeTeam: "Arsenal", AwayTeam: "Z", HomeGoals: 0, AwayGoals: 2, Date: kickoff.AddDate(0, 0, -21)},
	}

	form := buildForm("Arsenal", 42, results)
	assert.InDelta(t, 4.0/3, form.GoalsPerGame, 1e-9)
	assert.InDelta(t, 1.0, form.ConcededPerGame, 1e-9)
	assert.InDelta(t, 1.0/3, form.WinRate, 1e-9)
	assert.InDelta(t, 1.0/3, form.CleanSheetRate, 1e-9)
	assert.Equal(t, 3, form.SampleSize())
}

func TestMatchEventOddsByNameAndKickoff(t *testing.T) {
	kickoff := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)
	fixture := testutil.PremierLeagueFixture(1001, kickoff)

	odds := []models.MatchOdds{
		{MatchID: "evt-1", Market: "h2h", Selection: "Arsenal", Price: 2.1, CommenceTime: kickoff},
		{MatchID: "evt-1", Market: "totals", Selection: "Over 2.5", Price: 1.9, CommenceTime: kickoff},
		{MatchID: "evt-2", Market: "h2h", Selection: "Everton", Price: 2.4, CommenceTime: kickoff},
		{MatchID: "evt-3", Market: "h2h", Selection: "Arsenal", Price: 2.0, CommenceTime: kickoff.Add(48 * time.Hour)},
	}

	matched := matchEventOdds(odds, fixture)
	require.Len(t, matched, 2)
	for _, odd := range matched {
		assert.Equal(t, "evt-1", odd.MatchID)
	}
}

func TestOutcomeScorelines(t *testing.T) {
	match := models.Match{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}

	home := outcomeScorelines("Arsenal", match)
	assert.Contains(t, home, "2-1")
	assert.NotContains(t, home, "1-1")
	assert.NotContains(t, home, "0-2")

	draws := outcomeScorelines("Draw", match)
	assert.Contains(t, draws, "0-0")
	assert.Len(t, draws, 6)
}
