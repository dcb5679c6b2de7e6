// internal/models/action.go
package models

import "github.com/google/uuid"

// Action types written to the room action log.
const (
	ActionRoomCreated   = "room_created"
	ActionPlayerJoined  = "player_joined"
	ActionPlayerLeft    = "player_left"
	ActionGameStarted   = "game_started"
	ActionNumberCalled  = "number_called"
	ActionTurnTimeout   = "turn_timeout"
	ActionGameCompleted = "game_completed"
	ActionGameAbandoned = "game_abandoned"
	ActionRoomClosed    = "room_closed"
)

// RoomAction is one entry of the room action log consumed by the historian and the event feed.
type RoomAction struct {
	RoomCode      string                 `json:"room_code"`
	GameID        uuid.UUID              `json:"game_id"` // uuid.Nil before the game starts
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   string                 `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp     int64                  `json:"timestamp"` // epoch millis
}
