// internal/feed/nats_test.go
package feed

import (
	"testing"

	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "bingo.rooms.ABC234.number_called", Subject("", "ABC234", models.ActionNumberCalled))
	assert.Equal(t, "events.ABC234.room_closed", Subject("events", "ABC234", models.ActionRoomClosed))
}

func TestConnectReportsUnreachableServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", logrus.New())
	assert.Error(t, err)
}
