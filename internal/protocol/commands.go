// internal/protocol/commands.go
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jason-s-yu/bingo/internal/bingo"
	"github.com/jason-s-yu/bingo/internal/room"
)

// CommandType names a client request.
type CommandType string

const (
	CmdCreateRoom         CommandType = "createRoom"
	CmdJoinRoom           CommandType = "joinRoom"
	CmdLeaveRoom          CommandType = "leaveRoom"
	CmdStartGame          CommandType = "startGame"
	CmdCallNumber         CommandType = "callNumber"
	CmdCheckWin           CommandType = "checkWin"
	CmdSendMessage        CommandType = "sendMessage"
	CmdUpdateRoomSettings CommandType = "updateRoomSettings"
	CmdResync             CommandType = "resync"
)

// MaxChatLength bounds sendMessage bodies, counted in runes.
const MaxChatLength = 500

// Command is one of the concrete request types below. The set is closed: only this
// package can add implementations.
type Command interface {
	Type() CommandType
	validate() error
}

// CreateRoom asks for a new room hosted by the sender. UserID and Username are
// optional; when present UserID must match the authenticated identity.
type CreateRoom struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

type LeaveRoom struct {
	RoomCode string `json:"roomCode"`
}

type StartGame struct {
	RoomCode string `json:"roomCode"`
}

type CallNumber struct {
	RoomCode string `json:"roomCode"`
	Number   int    `json:"number"`
}

// CheckWin claims a win. Board is optional and, when sent, must be the dealt board.
type CheckWin struct {
	RoomCode string       `json:"roomCode"`
	Board    *bingo.Board `json:"board,omitempty"`
}

type SendMessage struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type UpdateRoomSettings struct {
	RoomCode   string `json:"roomCode"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Resync requests a full room snapshot after the client detected a sequence gap.
type Resync struct {
	RoomCode string `json:"roomCode"`
	LastSeq  uint64 `json:"lastSeq,omitempty"`
}

func (CreateRoom) Type() CommandType         { return CmdCreateRoom }
func (JoinRoom) Type() CommandType           { return CmdJoinRoom }
func (LeaveRoom) Type() CommandType          { return CmdLeaveRoom }
func (StartGame) Type() CommandType          { return CmdStartGame }
func (CallNumber) Type() CommandType         { return CmdCallNumber }
func (CheckWin) Type() CommandType           { return CmdCheckWin }
func (SendMessage) Type() CommandType        { return CmdSendMessage }
func (UpdateRoomSettings) Type() CommandType { return CmdUpdateRoomSettings }
func (Resync) Type() CommandType             { return CmdResync }

func (c *CreateRoom) validate() error {
	c.Username = strings.TrimSpace(c.Username)
	return nil
}

func (c *JoinRoom) validate() error {
	c.Username = strings.TrimSpace(c.Username)
	return normalizeCode(&c.RoomCode)
}

func (c *LeaveRoom) validate() error { return normalizeCode(&c.RoomCode) }
func (c *StartGame) validate() error { return normalizeCode(&c.RoomCode) }
func (c *Resync) validate() error    { return normalizeCode(&c.RoomCode) }

// Range checks for the number itself belong to the turn engine so the rejection carries OutOfRange.
func (c *CallNumber) validate() error { return normalizeCode(&c.RoomCode) }

func (c *CheckWin) validate() error {
	if err := normalizeCode(&c.RoomCode); err != nil {
		return err
	}
	if c.Board != nil {
		if err := c.Board.Validate(); err != nil {
			return fmt.Errorf("%w: %v", room.ErrInvalidMessage, err)
		}
	}
	return nil
}

func (c *SendMessage) validate() error {
	if err := normalizeCode(&c.RoomCode); err != nil {
		return err
	}
	c.Message = strings.TrimSpace(c.Message)
	if c.Message == "" {
		return fmt.Errorf("%w: message is empty", room.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(c.Message) > MaxChatLength {
		return fmt.Errorf("%w: message longer than %d characters", room.ErrInvalidMessage, MaxChatLength)
	}
	return nil
}

func (c *UpdateRoomSettings) validate() error { return normalizeCode(&c.RoomCode) }

func normalizeCode(code *string) error {
	*code = room.NormalizeCode(*code)
	if *code == "" {
		return fmt.Errorf("%w: roomCode is required", room.ErrInvalidMessage)
	}
	if !room.ValidCode(*code) {
		return room.ErrRoomNotFound
	}
	return nil
}

// RoomCode returns the room a command targets, or "" for createRoom.
func RoomCode(cmd Command) string {
	switch c := cmd.(type) {
	case *JoinRoom:
		return c.RoomCode
	case *LeaveRoom:
		return c.RoomCode
	case *StartGame:
		return c.RoomCode
	case *CallNumber:
		return c.RoomCode
	case *CheckWin:
		return c.RoomCode
	case *SendMessage:
		return c.RoomCode
	case *UpdateRoomSettings:
		return c.RoomCode
	case *Resync:
		return c.RoomCode
	}
	return ""
}

type envelope struct {
	Type CommandType `json:"type"`
}

// Decode parses and validates one client frame. Every error it returns wraps a *room.Error.
func Decode(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON", room.ErrInvalidMessage)
	}

	var cmd Command
	switch env.Type {
	case CmdCreateRoom:
		cmd = &CreateRoom{}
	case CmdJoinRoom:
		cmd = &JoinRoom{}
	case CmdLeaveRoom:
		cmd = &LeaveRoom{}
	case CmdStartGame:
		cmd = &StartGame{}
	case CmdCallNumber:
		cmd = &CallNumber{}
	case CmdCheckWin:
		cmd = &CheckWin{}
	case CmdSendMessage:
		cmd = &SendMessage{}
	case CmdUpdateRoomSettings:
		cmd = &UpdateRoomSettings{}
	case CmdResync:
		cmd = &Resync{}
	case "":
		return nil, fmt.Errorf("%w: missing type", room.ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", room.ErrInvalidMessage, env.Type)
	}

	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%w: bad %s payload", room.ErrInvalidMessage, env.Type)
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
