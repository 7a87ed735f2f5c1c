package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MatchResult is the record written when a game finishes.
type MatchResult struct {
	GameID     string
	Winner     string
	FinishedAt time.Time
	Players    []PlayerResult
}

// PlayerResult is one player's final ledger state.
type PlayerResult struct {
	PlayerID   string
	Score      int
	Level      int
	Lines      int
	Eliminated bool
}

// ScoreRow is one leaderboard entry.
type ScoreRow struct {
	PlayerID string
	Score    int
	GameID   string
}

// ResultRepository stores match results.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a result repository backed by the pool.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// EnsureSchema creates the result tables when they do not exist.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS match_results (
			game_id     TEXT PRIMARY KEY,
			winner      TEXT NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS player_results (
			game_id    TEXT NOT NULL REFERENCES match_results(game_id),
			player_id  TEXT NOT NULL,
			score      INTEGER NOT NULL,
			level      INTEGER NOT NULL,
			lines      INTEGER NOT NULL,
			eliminated BOOLEAN NOT NULL,
			PRIMARY KEY (game_id, player_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensuring result schema: %w", err)
	}
	return nil
}

// SaveResult writes a finished match and its per-player rows in one
// transaction.
func (r *ResultRepository) SaveResult(ctx context.Context, result MatchResult) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO match_results (game_id, winner, finished_at) VALUES ($1, $2, $3)
		 ON CONFLICT (game_id) DO NOTHING`,
		result.GameID, result.Winner, result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting match result: %w", err)
	}
	for _, p := range result.Players {
		_, err = tx.Exec(ctx,
			`INSERT INTO player_results (game_id, player_id, score, level, lines, eliminated)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (game_id, player_id) DO NOTHING`,
			result.GameID, p.PlayerID, p.Score, p.Level, p.Lines, p.Eliminated,
		)
		if err != nil {
			return fmt.Errorf("inserting player result for %s: %w", p.PlayerID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing result: %w", err)
	}

	r.db.logger.Info("match result saved",
		zap.String("game_id", result.GameID),
		zap.String("winner", result.Winner),
	)
	return nil
}

// TopScores returns the highest per-player scores, best first.
func (r *ResultRepository) TopScores(ctx context.Context, limit int) ([]ScoreRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT player_id, score, game_id FROM player_results
		 ORDER BY score DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top scores: %w", err)
	}
	defer rows.Close()

	scores := make([]ScoreRow, 0, limit)
	for rows.Next() {
		var row ScoreRow
		if err := rows.Scan(&row.PlayerID, &row.Score, &row.GameID); err != nil {
			return nil, fmt.Errorf("scanning score row: %w", err)
		}
		scores = append(scores, row)
	}
	return scores, rows.Err()
}
