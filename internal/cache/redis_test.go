// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishActionAppendsToQueue(t *testing.T) {
	addr := testutil.Redis(t)
	ctx := context.Background()

	rdb, err := Connect(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	pub := NewPublisher(rdb, "")
	assert.Equal(t, DefaultQueueName, pub.Queue())

	gameID := uuid.New()
	for i := 0; i < 2; i++ {
		require.NoError(t, pub.PublishAction(ctx, models.RoomAction{
			RoomCode:    "ABC234",
			GameID:      gameID,
			ActionIndex: i,
			ActionType:  models.ActionNumberCalled,
		}))
	}

	raw, err := rdb.LRange(ctx, DefaultQueueName, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var first models.RoomAction
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &first))
	assert.Equal(t, 0, first.ActionIndex)
	assert.Equal(t, gameID, first.GameID)
}

func TestConnectFailsFast(t *testing.T) {
	_, err := Connect(context.Background(), "127.0.0.1:1", 0)
	assert.Error(t, err)
}
