// internal/models/result.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameResult is the final outcome of one completed game, handed to the result store.
type GameResult struct {
	GameID      uuid.UUID      `json:"game_id"`
	RoomCode    string         `json:"room_code"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	WinnerID    string         `json:"winner_id"`
	TotalCalled int            `json:"total_called"`
	Players     []PlayerResult `json:"players"`
}

// PlayerResult is one player's line in a GameResult.
type PlayerResult struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	IsWinner       bool   `json:"is_winner"`
	LinesCompleted int    `json:"lines_completed"`
	NumbersCalled  int    `json:"numbers_called"`
	// Guest results are kept with the game but never scored or rated.
	Guest bool `json:"guest"`
}

// Duration is the wall time between start and completion.
func (r GameResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Period selects a leaderboard window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodOverall Period = "overall"
)

// LeaderboardEntry is one aggregated row of a leaderboard.
type LeaderboardEntry struct {
	UserID              string  `json:"userId"`
	Username            string  `json:"username"`
	TotalScore          int     `json:"totalScore"`
	GamesPlayed         int     `json:"gamesPlayed"`
	GamesWon            int     `json:"gamesWon"`
	TotalLinesCompleted int     `json:"totalLinesCompleted"`
	WinRate             float64 `json:"winRate"`
}

// UserStats summarizes one user's history.
type UserStats struct {
	UserID              string  `json:"userId"`
	GamesPlayed         int     `json:"gamesPlayed"`
	GamesWon            int     `json:"gamesWon"`
	TotalScore          int     `json:"totalScore"`
	TotalLinesCompleted int     `json:"totalLinesCompleted"`
	WinRate             float64 `json:"winRate"`
}
