// Package store persists opportunities and serves the settled history
// other components train on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// Schema is the DDL for the opportunity tables. Applied idempotently at
// startup; migrations proper live with the deployment tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id UUID PRIMARY KEY,
	match_id TEXT NOT NULL,
	home_team TEXT NOT NULL,
	away_team TEXT NOT NULL,
	league TEXT NOT NULL,
	kickoff_time TIMESTAMPTZ NOT NULL,
	market TEXT NOT NULL,
	selection TEXT NOT NULL,
	odds DOUBLE PRECISION NOT NULL,
	edge_percentage DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	tier TEXT NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL,
	daily_rank INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	data_source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	outcome TEXT NOT NULL DEFAULT '',
	profit_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
	settled_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_opportunities_dedup
	ON opportunities (home_team, away_team, selection, created_at)
	WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_opportunities_day
	ON opportunities (created_at, tier);

CREATE TABLE IF NOT EXISTS api_request_counters (
	provider TEXT NOT NULL,
	day DATE NOT NULL,
	used INT NOT NULL DEFAULT 0,
	last_request_at TIMESTAMPTZ,
	PRIMARY KEY (provider, day)
);

CREATE TABLE IF NOT EXISTS training_samples (
	match_id TEXT PRIMARY KEY,
	home_goals_per_game DOUBLE PRECISION NOT NULL,
	home_conceded_per_game DOUBLE PRECISION NOT NULL,
	away_goals_per_game DOUBLE PRECISION NOT NULL,
	away_conceded_per_game DOUBLE PRECISION NOT NULL,
	home_win_rate DOUBLE PRECISION NOT NULL,
	away_win_rate DOUBLE PRECISION NOT NULL,
	h2h_avg_home_goals DOUBLE PRECISION NOT NULL,
	h2h_avg_away_goals DOUBLE PRECISION NOT NULL,
	result_home_goals INT,
	result_away_goals INT,
	recorded_at TIMESTAMPTZ NOT NULL,
	settled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS api_cache (
	provider TEXT NOT NULL,
	endpoint_class TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	hit_count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, endpoint_class, cache_key)
);
`

// Store wraps the opportunities table.
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

func New(db *sql.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log.WithField("component", "store")}
}

// EnsureSchema applies the DDL.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertBatch writes a daily batch in one transaction. The batch is all
// or nothing; a partial day would corrupt the daily rank sequence.
func (s *Store) InsertBatch(ctx context.Context, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO opportunities (
			id, match_id, home_team, away_team, league, kickoff_time,
			market, selection, odds, edge_percentage, confidence,
			tier, quality_score, daily_rank, status, data_source, created_at
		)
		SELECT * FROM UNNEST(
			$1::uuid[], $2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[],
			$7::text[], $8::text[], $9::float8[], $10::float8[], $11::float8[],
			$12::text[], $13::float8[], $14::int[], $15::text[], $16::text[], $17::timestamptz[]
		)
	`

	n := len(opps)
	ids := make([]string, n)
	matchIDs := make([]string, n)
	homes := make([]string, n)
	aways := make([]string, n)
	leaguesCol := make([]string, n)
	kickoffs := make([]time.Time, n)
	markets := make([]string, n)
	selections := make([]string, n)
	odds := make([]float64, n)
	edges := make([]float64, n)
	confidences := make([]float64, n)
	tiers := make([]string, n)
	qualities := make([]float64, n)
	ranks := make([]int, n)
	statuses := make([]string, n)
	sources := make([]string, n)
	createds := make([]time.Time, n)

	for i, o := range opps {
		ids[i] = o.ID
		matchIDs[i] = o.MatchID
		homes[i] = o.HomeTeam
		aways[i] = o.AwayTeam
		leaguesCol[i] = o.League
		kickoffs[i] = o.KickoffTime
		markets[i] = o.Market
		selections[i] = o.Selection
		odds[i] = o.Odds
		edges[i] = o.EdgePercentage
		confidences[i] = o.Confidence
		tiers[i] = string(o.Tier)
		qualities[i] = o.QualityScore
		ranks[i] = o.DailyRank
		statuses[i] = string(o.Status)
		sources[i] = string(o.DataSource)
		createds[i] = o.CreatedAt
	}

	if _, err := tx.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(matchIDs), pq.Array(homes), pq.Array(aways), pq.Array(leaguesCol), pq.Array(kickoffs),
		pq.Array(markets), pq.Array(selections), pq.Array(odds), pq.Array(edges), pq.Array(confidences),
		pq.Array(tiers), pq.Array(qualities), pq.Array(ranks), pq.Array(statuses), pq.Array(sources), pq.Array(createds),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.log.WithField("count", n).Info("opportunity batch written")
	return nil
}

// HasPendingDuplicate reports whether a pending opportunity with the
// same (home, away, selection) exists at or after the cutoff.
func (s *Store) HasPendingDuplicate(ctx context.Context, dedupKey string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM opportunities
			WHERE home_team || '|' || away_team || '|' || selection = $1
			  AND status = 'pending'
			  AND created_at > $2
		)
	`, dedupKey, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup query: %w", err)
	}
	return exists, nil
}

// UpdateSettlement records the outcome of a settled opportunity. Only
// pending rows move; settling twice is a no-op.
func (s *Store) UpdateSettlement(ctx context.Context, id string, status models.Status, outcome string, profitLoss float64, settledAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE opportunities
		SET status = $2, outcome = $3, profit_loss = $4, settled_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), outcome, profitLoss, settledAt)
	if err != nil {
		return fmt.Errorf("update settlement %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.log.WithField("id", id).Debug("settlement skipped, not pending")
	}
	return nil
}

// PendingKickedOff lists pending opportunities whose match has started,
// the settlement collaborator's work queue.
func (s *Store) PendingKickedOff(ctx context.Context, now time.Time) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, home_team, away_team, league, kickoff_time,
		       market, selection, odds, edge_percentage, confidence,
		       tier, quality_score, daily_rank, status, data_source, created_at,
		       outcome, profit_loss, settled_at
		FROM opportunities
		WHERE status = 'pending' AND kickoff_time < $1
		ORDER BY kickoff_time
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// DailyTierCounts returns how many opportunities each tier already has
// for the calendar day containing now. Feeds the selector's caps.
func (s *Store) DailyTierCounts(ctx context.Context, now time.Time) (map[models.Tier]int, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, COUNT(*) FROM opportunities
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY tier
	`, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("query tier counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Tier]int)
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		counts[models.Tier(tier)] = count
	}
	return counts, rows.Err()
}

// SettledSince returns settled opportunities for model retraining.
func (s *Store) SettledSince(ctx context.Context, since time.Time) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, home_team, away_team, league, kickoff_time,
		       market, selection, odds, edge_percentage, confidence,
		       tier, quality_score, daily_rank, status, data_source, created_at,
		       outcome, profit_loss, settled_at
		FROM opportunities
		WHERE status IN ('won', 'lost') AND settled_at >= $1
		ORDER BY settled_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query settled: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

func scanOpportunities(rows *sql.Rows) ([]models.Opportunity, error) {
	var out []models.Opportunity
	for rows.Next() {
		var o models.Opportunity
		var tier, status, source string
		var settledAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.MatchID, &o.HomeTeam, &o.AwayTeam, &o.League, &o.KickoffTime,
			&o.Market, &o.Selection, &o.Odds, &o.EdgePercentage, &o.Confidence,
			&tier, &o.QualityScore, &o.DailyRank, &status, &source, &o.CreatedAt,
			&o.Outcome, &o.ProfitLoss, &settledAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		o.Tier = models.Tier(tier)
		o.Status = models.Status(status)
		o.DataSource = models.DataSource(source)
		if settledAt.Valid {
			t := settledAt.Time
			o.SettledAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
