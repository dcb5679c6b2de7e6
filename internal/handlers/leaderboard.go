// internal/handlers/leaderboard.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/database"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/sirupsen/logrus"
)

// maxLeaderboardSize caps the limit query parameter.
const maxLeaderboardSize = 100

// ScoreStore is the read side of the result store.
type ScoreStore interface {
	Leaderboard(ctx context.Context, period models.Period, limit int, now time.Time) ([]models.LeaderboardEntry, error)
	UserStats(ctx context.Context, userID string) (models.UserStats, error)
}

// LeaderboardHandler serves GET /leaderboard/{period} for weekly, monthly or overall.
// An optional limit query parameter selects the size.
func LeaderboardHandler(logger *logrus.Logger, store ScoreStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := models.Period(r.PathValue("period"))
		switch period {
		case models.PeriodWeekly, models.PeriodMonthly, models.PeriodOverall:
		default:
			http.Error(w, "period must be weekly, monthly or overall", http.StatusBadRequest)
			return
		}

		limit := database.DefaultLeaderboardSize
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxLeaderboardSize {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := store.Leaderboard(r.Context(), period, limit, time.Now())
		if err != nil {
			logger.Errorf("leaderboard %s: %v", period, err)
			http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []models.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"period":  period,
			"entries": entries,
		})
	}
}

// UserStatsHandler serves GET /users/{id}/stats.
func UserStatsHandler(logger *logrus.Logger, store ScoreStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		stats, err := store.UserStats(r.Context(), id.String())
		if err != nil {
			logger.Errorf("stats for %s: %v", id, err)
			http.Error(w, "failed to load stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
