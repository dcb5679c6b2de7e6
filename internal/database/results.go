// internal/database/results.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/rating"
)

// RecordResult persists a finished game in one transaction: the games row, one
// game_results row per player, a scores row and a rating update per registered player.
// Recording the same game twice is a no-op for scores and ratings.
func (s *Store) RecordResult(ctx context.Context, res models.GameResult) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var fresh bool
		upsertGame := `
			INSERT INTO games (id, room_code, status, winner_id, total_called, started_at, completed_at, last_action_at)
			VALUES ($1, $2, 'completed', $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE
			SET status = 'completed', winner_id = $3, total_called = $4,
			    started_at = COALESCE(games.started_at, $5), completed_at = $6, last_action_at = $6
			RETURNING NOT EXISTS (SELECT 1 FROM scores WHERE game_id = $1)`
		if err := tx.QueryRow(ctx, upsertGame,
			res.GameID, res.RoomCode, res.WinnerID, res.TotalCalled, res.StartedAt, res.CompletedAt,
		).Scan(&fresh); err != nil {
			return fmt.Errorf("upsert game: %w", err)
		}

		for _, p := range res.Players {
			q := `
				INSERT INTO game_results (game_id, user_id, username, is_winner, lines_completed, numbers_called, is_guest)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (game_id, user_id)
				DO UPDATE SET is_winner=$4, lines_completed=$5, numbers_called=$6`
			if _, err := tx.Exec(ctx, q, res.GameID, p.UserID, p.Username, p.IsWinner,
				p.LinesCompleted, p.NumbersCalled, p.Guest); err != nil {
				return fmt.Errorf("insert result for %s: %w", p.UserID, err)
			}
		}

		if !fresh {
			s.logger.Infof("game %s already scored, skipping scores and ratings", res.GameID)
			return nil
		}

		registered, err := loadRatings(ctx, tx, res.Players)
		if err != nil {
			return err
		}
		if err := insertScores(ctx, tx, res, registered); err != nil {
			return err
		}
		return applyRatings(ctx, tx, res, registered)
	})
	if err != nil {
		return fmt.Errorf("tx record game %s: %w", res.GameID, err)
	}
	return nil
}

// loadRatings locks and returns the rating rows of the players that have accounts.
func loadRatings(ctx context.Context, tx pgx.Tx, players []models.PlayerResult) (map[string]rating.Rating, error) {
	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		if p.Guest {
			continue
		}
		if id, err := uuid.Parse(p.UserID); err == nil {
			ids = append(ids, id)
		}
	}
	out := make(map[string]rating.Rating, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT id, rating, rating_deviation, rating_volatility
		FROM users WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			r  rating.Rating
		)
		if err := rows.Scan(&id, &r.Value, &r.Deviation, &r.Volatility); err != nil {
			return nil, err
		}
		out[id.String()] = r
	}
	return out, rows.Err()
}

func insertScores(ctx context.Context, tx pgx.Tx, res models.GameResult, registered map[string]rating.Rating) error {
	multiplayer := len(res.Players) > 1
	played := res.Duration()
	weekYear, week := res.CompletedAt.ISOWeek()

	batch := &pgx.Batch{}
	for _, p := range res.Players {
		if _, ok := registered[p.UserID]; !ok {
			continue
		}
		batch.Queue(`
			INSERT INTO scores (game_id, user_id, score, is_winner, lines_completed, duration_secs,
			                    week_year, week, month, year, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (game_id, user_id) DO NOTHING`,
			res.GameID, p.UserID,
			rating.Points(p.IsWinner, p.LinesCompleted, multiplayer, played),
			p.IsWinner, p.LinesCompleted, int(played.Seconds()),
			weekYear, week, int(res.CompletedAt.Month()), res.CompletedAt.Year(), res.CompletedAt,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert scores: %w", err)
	}
	return nil
}

// applyRatings runs one Glicko-2 period across the registered players. Guests still
// count toward placement but are not rated.
func applyRatings(ctx context.Context, tx pgx.Tx, res models.GameResult, registered map[string]rating.Rating) error {
	if len(registered) < 2 {
		return nil
	}

	inputs := make([]rating.PlacementInput, 0, len(res.Players))
	for _, p := range res.Players {
		inputs = append(inputs, rating.PlacementInput{UserID: p.UserID, IsWinner: p.IsWinner, Lines: p.LinesCompleted})
	}
	places := rating.Placements(inputs)

	standings := make([]rating.Standing, 0, len(registered))
	for id, r := range registered {
		standings = append(standings, rating.Standing{UserID: id, Rating: r, Placement: places[id]})
	}
	updated := rating.FinalizeRatings(standings)

	batch := &pgx.Batch{}
	for id, next := range updated {
		prev := registered[id]
		batch.Queue(`UPDATE users SET rating=$1, rating_deviation=$2, rating_volatility=$3 WHERE id=$4`,
			next.Value, next.Deviation, next.Volatility, id)
		batch.Queue(`
			INSERT INTO ratings (user_id, game_id, old_rating, new_rating, old_deviation, new_deviation)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, res.GameID, prev.Value, next.Value, prev.Deviation, next.Deviation)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("apply ratings: %w", err)
	}
	return nil
}
