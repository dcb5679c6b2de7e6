// internal/protocol/protocol_test.go
package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownCommands(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"joinRoom","roomCode":" abc234 ","username":"  Ann "}`))
	require.NoError(t, err)
	join, ok := cmd.(*JoinRoom)
	require.True(t, ok)
	assert.Equal(t, "ABC234", join.RoomCode)
	assert.Equal(t, "Ann", join.Username)
	assert.Equal(t, CmdJoinRoom, cmd.Type())
	assert.Equal(t, "ABC234", RoomCode(cmd))

	cmd, err = Decode([]byte(`{"type":"callNumber","roomCode":"ABC234","number":17}`))
	require.NoError(t, err)
	assert.Equal(t, 17, cmd.(*CallNumber).Number)

	cmd, err = Decode([]byte(`{"type":"createRoom"}`))
	require.NoError(t, err)
	assert.Equal(t, "", RoomCode(cmd))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind room.Kind
	}{
		{"not json", `{nope`, room.KindInvalidMessage},
		{"missing type", `{"roomCode":"ABC234"}`, room.KindInvalidMessage},
		{"unknown type", `{"type":"dance"}`, room.KindInvalidMessage},
		{"wrong field type", `{"type":"callNumber","roomCode":"ABC234","number":"17"}`, room.KindInvalidMessage},
		{"missing room code", `{"type":"startGame"}`, room.KindInvalidMessage},
		{"impossible room code", `{"type":"startGame","roomCode":"OOOOOO"}`, room.KindRoomNotFound},
		{"empty chat", `{"type":"sendMessage","roomCode":"ABC234","message":"   "}`, room.KindInvalidMessage},
		{"bad board", `{"type":"checkWin","roomCode":"ABC234","board":[[1,1,1,1,1]]}`, room.KindInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.kind, room.KindOf(err))
		})
	}
}

func TestDecodeChatLimits(t *testing.T) {
	long := strings.Repeat("a", MaxChatLength+1)
	_, err := Decode([]byte(`{"type":"sendMessage","roomCode":"ABC234","message":"` + long + `"}`))
	assert.Equal(t, room.KindInvalidMessage, room.KindOf(err))

	cmd, err := Decode([]byte(`{"type":"sendMessage","roomCode":"ABC234","message":"  hi  "}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", cmd.(*SendMessage).Message)
}

func TestErrorEventCarriesKind(t *testing.T) {
	ev := ErrorEvent("ABC234", room.ErrAlreadyCalled)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, "AlreadyCalled", got["kind"])
	assert.Equal(t, "ABC234", got["roomCode"])
	assert.NotContains(t, got, "players")
}
