// internal/database/store_test.go
package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/database"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/rating"
	"github.com/jason-s-yu/bingo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, store *database.Store, email, name string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "hunter22", Username: name}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	store, _ := testutil.Postgres(t)
	ctx := context.Background()

	u := createUser(t, store, "Ann@Example.com ", "ann")
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, rating.DefaultRating, u.Rating)

	err := store.CreateUser(ctx, &models.User{Email: "ann@example.com", Password: "x", Username: "dup"})
	assert.ErrorIs(t, err, database.ErrEmailTaken)

	got, err := store.AuthenticateUser(ctx, "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = store.AuthenticateUser(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, database.ErrInvalidCredentials)
	_, err = store.AuthenticateUser(ctx, "nobody@example.com", "x")
	assert.ErrorIs(t, err, database.ErrInvalidCredentials)

	_, err = store.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestRecordResultScoresRatesAndRanks(t *testing.T) {
	store, _ := testutil.Postgres(t)
	ctx := context.Background()

	ann := createUser(t, store, "ann@example.com", "ann")
	bob := createUser(t, store, "bob@example.com", "bob")
	guest := uuid.NewString()

	completed := time.Now().UTC().Truncate(time.Second)
	res := models.GameResult{
		GameID:      uuid.New(),
		RoomCode:    "ABC234",
		StartedAt:   completed.Add(-5 * time.Minute),
		CompletedAt: completed,
		WinnerID:    ann.ID.String(),
		TotalCalled: 14,
		Players: []models.PlayerResult{
			{UserID: ann.ID.String(), Username: "ann", IsWinner: true, LinesCompleted: 5, NumbersCalled: 7},
			{UserID: bob.ID.String(), Username: "bob", LinesCompleted: 2, NumbersCalled: 7},
			{UserID: guest, Username: "Guest-1", LinesCompleted: 1, Guest: true},
		},
	}
	require.NoError(t, store.RecordResult(ctx, res))
	// a retry must not double count
	require.NoError(t, store.RecordResult(ctx, res))

	board, err := store.Leaderboard(ctx, models.PeriodWeekly, 10, completed)
	require.NoError(t, err)
	require.Len(t, board, 2, "guests are not ranked")
	assert.Equal(t, "ann", board[0].Username)
	assert.Equal(t, rating.Points(true, 5, true, 5*time.Minute), board[0].TotalScore)
	assert.Equal(t, 1, board[0].GamesWon)
	assert.Equal(t, 100.0, board[0].WinRate)
	assert.Equal(t, "bob", board[1].Username)
	assert.Equal(t, 0.0, board[1].WinRate)

	overall, err := store.Leaderboard(ctx, models.PeriodOverall, 1, completed)
	require.NoError(t, err)
	require.Len(t, overall, 1)

	_, err = store.Leaderboard(ctx, models.Period("daily"), 10, completed)
	assert.Error(t, err)

	annAfter, err := store.GetUserByID(ctx, ann.ID)
	require.NoError(t, err)
	bobAfter, err := store.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Greater(t, annAfter.Rating, rating.DefaultRating)
	assert.Less(t, bobAfter.Rating, rating.DefaultRating)

	stats, err := store.UserStats(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.TotalLinesCompleted)
	assert.Zero(t, stats.TotalScore)
}
