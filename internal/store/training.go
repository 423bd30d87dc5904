package store

import (
	"context"
	"fmt"
	"time"

	"github.com/XavierBriggs/Cassandra/internal/xg"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
)

// SaveTrainingFeatures persists the feature vector observed before
// kickoff. The first evaluation of a match wins; later cycles see the
// same fixture with staler-or-equal form, so the row is never replaced.
func (s *Store) SaveTrainingFeatures(ctx context.Context, matchID string, f contracts.GoalFeatures, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_samples (
			match_id,
			home_goals_per_game, home_conceded_per_game,
			away_goals_per_game, away_conceded_per_game,
			home_win_rate, away_win_rate,
			h2h_avg_home_goals, h2h_avg_away_goals,
			recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (match_id) DO NOTHING
	`, matchID,
		f.HomeGoalsPerGame, f.HomeConcededPerGame,
		f.AwayGoalsPerGame, f.AwayConcededPerGame,
		f.HomeWinRate, f.AwayWinRate,
		f.H2HAvgHomeGoals, f.H2HAvgAwayGoals,
		now)
	if err != nil {
		return fmt.Errorf("save training features %s: %w", matchID, err)
	}
	return nil
}

// RecordTrainingResult fills in the final score for a match's sample.
// A match with no saved features, or one already settled, is a no-op.
func (s *Store) RecordTrainingResult(ctx context.Context, matchID string, homeGoals, awayGoals int, settledAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE training_samples
		SET result_home_goals = $2, result_away_goals = $3, settled_at = $4
		WHERE match_id = $1 AND result_home_goals IS NULL
	`, matchID, homeGoals, awayGoals, settledAt)
	if err != nil {
		return fmt.Errorf("record training result %s: %w", matchID, err)
	}
	return nil
}

// TrainingSamples returns the most recently settled samples, up to
// limit, for regressor fitting.
func (s *Store) TrainingSamples(ctx context.Context, limit int) ([]xg.TrainingSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT home_goals_per_game, home_conceded_per_game,
		       away_goals_per_game, away_conceded_per_game,
		       home_win_rate, away_win_rate,
		       h2h_avg_home_goals, h2h_avg_away_goals,
		       result_home_goals, result_away_goals
		FROM training_samples
		WHERE result_home_goals IS NOT NULL
		ORDER BY settled_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query training samples: %w", err)
	}
	defer rows.Close()

	var out []xg.TrainingSample
	for rows.Next() {
		var sample xg.TrainingSample
		if err := rows.Scan(
			&sample.Features.HomeGoalsPerGame, &sample.Features.HomeConcededPerGame,
			&sample.Features.AwayGoalsPerGame, &sample.Features.AwayConcededPerGame,
			&sample.Features.HomeWinRate, &sample.Features.AwayWinRate,
			&sample.Features.H2HAvgHomeGoals, &sample.Features.H2HAvgAwayGoals,
			&sample.HomeGoals, &sample.AwayGoals,
		); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
