// internal/historian/historian_test.go
package historian

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/cache"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	a, err := Decode([]byte(`{"room_code":"ABC234","game_id":"00000000-0000-0000-0000-000000000000","action_index":3,"action_type":"player_joined","timestamp":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, "ABC234", a.RoomCode)
	assert.Equal(t, uuid.Nil, a.GameID)
	assert.Equal(t, 3, a.ActionIndex)

	_, err = Decode([]byte(`{"action_type":"player_joined"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusCompleted, StatusFor(models.ActionGameCompleted))
	assert.Equal(t, StatusAbandoned, StatusFor(models.ActionGameAbandoned))
	assert.Equal(t, StatusInProgress, StatusFor(models.ActionGameStarted))
	assert.Equal(t, StatusInProgress, StatusFor(models.ActionNumberCalled))
}

func TestServiceWritesActionsAndGames(t *testing.T) {
	store, _ := testutil.Postgres(t)
	addr := testutil.Redis(t)

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	pub := cache.NewPublisher(rdb, "test_actions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	finished, stale := uuid.New(), uuid.New()
	actions := []models.RoomAction{
		{RoomCode: "ABC234", ActionIndex: 0, ActorUserID: "u1", ActionType: models.ActionRoomCreated},
		{RoomCode: "ABC234", GameID: finished, ActionIndex: 1, ActorUserID: "u1", ActionType: models.ActionGameStarted},
		{RoomCode: "ABC234", GameID: finished, ActionIndex: 2, ActorUserID: "u1", ActionType: models.ActionNumberCalled,
			ActionPayload: map[string]interface{}{"number": 7}},
		{RoomCode: "ABC234", GameID: finished, ActionIndex: 3, ActorUserID: "u1", ActionType: models.ActionGameCompleted},
		// a late abandon must not overwrite the completed status
		{RoomCode: "ABC234", GameID: finished, ActionIndex: 4, ActionType: models.ActionGameAbandoned},
		{RoomCode: "XYZ789", GameID: stale, ActionIndex: 0, ActorUserID: "u2", ActionType: models.ActionGameStarted},
	}
	for i, a := range actions {
		a.Timestamp = start.Add(time.Duration(i) * time.Second).UnixMilli()
		if a.RoomCode == "XYZ789" {
			a.Timestamp = start.Add(-time.Hour).UnixMilli()
		}
		require.NoError(t, pub.PublishAction(ctx, a))
	}

	svc := New(rdb, store.Pool(), testutil.QuietLogger(), Options{
		Queue:         "test_actions",
		BatchSize:     4,
		FlushInterval: 50 * time.Millisecond,
		Inactivity:    30 * time.Minute,
		PopTimeout:    100 * time.Millisecond,
		SweepEvery:    time.Hour,
	})
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		var n int
		err := store.Pool().QueryRow(ctx, `SELECT count(*) FROM room_actions`).Scan(&n)
		return err == nil && n == len(actions)
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	bg := context.Background()
	var status string
	require.NoError(t, store.Pool().QueryRow(bg, `SELECT status FROM games WHERE id = $1`, finished).Scan(&status))
	assert.Equal(t, StatusCompleted, status)

	var nilGame int
	require.NoError(t, store.Pool().QueryRow(bg,
		`SELECT count(*) FROM room_actions WHERE game_id IS NULL AND action_type = $1`, models.ActionRoomCreated).Scan(&nilGame))
	assert.Equal(t, 1, nilGame)

	ids, err := svc.MarkInactive(bg, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale}, ids)
	require.NoError(t, store.Pool().QueryRow(bg, `SELECT status FROM games WHERE id = $1`, stale).Scan(&status))
	assert.Equal(t, StatusAbandoned, status)
}
