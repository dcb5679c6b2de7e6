// internal/database/leaderboard.go
package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/bingo/internal/models"
)

// DefaultLeaderboardSize is the number of rows a leaderboard returns.
const DefaultLeaderboardSize = 10

// Leaderboard aggregates scores for the period containing now, best total first.
func (s *Store) Leaderboard(ctx context.Context, period models.Period, limit int, now time.Time) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	var (
		where string
		args  []any
	)
	switch period {
	case models.PeriodWeekly:
		year, week := now.ISOWeek()
		where, args = "WHERE s.week_year = $1 AND s.week = $2", []any{year, week}
	case models.PeriodMonthly:
		where, args = "WHERE s.year = $1 AND s.month = $2", []any{now.Year(), int(now.Month())}
	case models.PeriodOverall:
	default:
		return nil, fmt.Errorf("unknown leaderboard period %q", period)
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT s.user_id, u.username,
		       SUM(s.score)::INT,
		       COUNT(*)::INT,
		       COUNT(*) FILTER (WHERE s.is_winner)::INT,
		       SUM(s.lines_completed)::INT
		FROM scores s
		JOIN users u ON u.id = s.user_id
		%s
		GROUP BY s.user_id, u.username
		ORDER BY 3 DESC, 5 DESC, u.username
		LIMIT $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s leaderboard: %w", period, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LeaderboardEntry, error) {
		var (
			e  models.LeaderboardEntry
			id uuid.UUID
		)
		if err := row.Scan(&id, &e.Username, &e.TotalScore, &e.GamesPlayed, &e.GamesWon, &e.TotalLinesCompleted); err != nil {
			return e, err
		}
		e.UserID = id.String()
		e.WinRate = winRate(e.GamesWon, e.GamesPlayed)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s leaderboard: %w", period, err)
	}
	return entries, nil
}

// UserStats summarizes every recorded game of one user, guests included.
func (s *Store) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	st := models.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)::INT,
		       COUNT(*) FILTER (WHERE r.is_winner)::INT,
		       COALESCE(SUM(r.lines_completed), 0)::INT,
		       COALESCE((SELECT SUM(score) FROM scores WHERE user_id::TEXT = $1), 0)::INT
		FROM game_results r
		WHERE r.user_id = $1`, userID,
	).Scan(&st.GamesPlayed, &st.GamesWon, &st.TotalLinesCompleted, &st.TotalScore)
	if err != nil {
		return st, fmt.Errorf("query stats for %s: %w", userID, err)
	}
	st.WinRate = winRate(st.GamesWon, st.GamesPlayed)
	return st, nil
}

// winRate is the win percentage rounded to one decimal.
func winRate(won, played int) float64 {
	if played == 0 {
		return 0
	}
	return math.Round(float64(won)/float64(played)*1000) / 10
}
