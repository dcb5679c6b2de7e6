// internal/protocol/events.go
package protocol

import (
	"time"

	"github.com/jason-s-yu/bingo/internal/bingo"
	"github.com/jason-s-yu/bingo/internal/room"
)

// EventType names a server notification.
type EventType string

const (
	EventRoomCreated    EventType = "roomCreated"    // ack to creator
	EventRoomJoined     EventType = "roomJoined"     // full snapshot to a joining or rejoining connection
	EventRoomUpdate     EventType = "roomUpdate"     // roster/state change
	EventPlayerJoined   EventType = "playerJoined"   // to the other members
	EventPlayerLeft     EventType = "playerLeft"     // to the remaining members
	EventRoomLeft       EventType = "roomLeft"       // ack to the leaver
	EventGameReady      EventType = "gameReady"      // one-shot on waiting -> ready
	EventGameStarted    EventType = "gameStarted"    // room is active
	EventBoardAssigned  EventType = "boardAssigned"  // private board at game start
	EventNumberCalled   EventType = "numberCalled"   // call broadcast
	EventTurnSwitched   EventType = "turnSwitched"   // rotation
	EventWinCheckResult EventType = "winCheckResult" // private answer to a failed claim
	EventGameCompleted  EventType = "gameCompleted"  // terminal
	EventNewMessage     EventType = "newMessage"     // chat
	EventRoomState      EventType = "roomState"      // resync answer
	EventRoomClosed     EventType = "roomClosed"     // completed room reclaimed
	EventError          EventType = "error"
)

// Reasons carried by turnSwitched and playerLeft.
const (
	ReasonCalled       = "called"
	ReasonTimeout      = "timeout"
	ReasonPlayerLeft   = "playerLeft"
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonExpired      = "expired"
)

// Event is the single outbound message shape. Fields irrelevant to a type are omitted.
type Event struct {
	Type     EventType `json:"type"`
	RoomCode string    `json:"roomCode,omitempty"`
	Seq      uint64    `json:"seq,omitempty"`

	// snapshot fields
	Players       []room.PlayerView `json:"players,omitempty"`
	Status        room.Status       `json:"status,omitempty"`
	MaxPlayers    int               `json:"maxPlayers,omitempty"`
	HostID        string            `json:"hostId,omitempty"`
	CalledNumbers []int             `json:"calledNumbers,omitempty"`
	Board         *bingo.Board      `json:"board,omitempty"`

	// numberCalled
	Number           int        `json:"number,omitempty"`
	CalledBy         string     `json:"calledBy,omitempty"`
	CalledByUsername string     `json:"calledByUsername,omitempty"`
	CalledAt         *time.Time `json:"calledAt,omitempty"`
	TotalCalled      int        `json:"totalCalled,omitempty"`

	// turnSwitched; CurrentPlayer is also the active turn in snapshots
	CurrentPlayer         string `json:"currentPlayer,omitempty"`
	CurrentPlayerUsername string `json:"currentPlayerUsername,omitempty"`
	NextPlayer            string `json:"nextPlayer,omitempty"`
	NextPlayerUsername    string `json:"nextPlayerUsername,omitempty"`
	Reason                string `json:"reason,omitempty"`

	// gameCompleted / winCheckResult
	Winner         string     `json:"winner,omitempty"`
	WinnerUsername string     `json:"winnerUsername,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Lines          *int       `json:"lines,omitempty"`
	Threshold      int        `json:"threshold,omitempty"`
	IsWinner       *bool      `json:"isWinner,omitempty"`

	// playerJoined / playerLeft / newMessage
	UserID    string     `json:"userId,omitempty"`
	Username  string     `json:"username,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// error
	Kind room.Kind `json:"kind,omitempty"`
}

// SnapshotEvent builds an event of type t carrying the full room snapshot.
func SnapshotEvent(t EventType, s room.Snapshot) Event {
	return Event{
		Type:           t,
		RoomCode:       s.RoomCode,
		Seq:            s.Seq,
		Players:        s.Players,
		Status:         s.Status,
		MaxPlayers:     s.MaxPlayers,
		HostID:         s.HostID,
		CalledNumbers:  s.CalledNumbers,
		CurrentPlayer:  s.CurrentPlayer,
		Board:          s.Board,
		Winner:         s.WinnerID,
		WinnerUsername: s.WinnerUsername,
		CompletedAt:    s.CompletedAt,
	}
}

// ErrorEvent reports a rejected operation to the originating connection.
func ErrorEvent(roomCode string, err error) Event {
	return Event{
		Type:     EventError,
		RoomCode: roomCode,
		Kind:     room.KindOf(err),
		Message:  err.Error(),
	}
}

// Ptr is a small helper for the optional pointer fields.
func Ptr[T any](v T) *T { return &v }
