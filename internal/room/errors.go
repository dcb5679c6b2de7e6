// internal/room/errors.go
package room

import "errors"

// Kind classifies a rejected operation. It is sent to clients verbatim.
type Kind string

const (
	KindRoomNotFound         Kind = "RoomNotFound"
	KindRoomFull             Kind = "RoomFull"
	KindAlreadyInRoom        Kind = "AlreadyInRoom"
	KindNotHost              Kind = "NotHost"
	KindInsufficientPlayers  Kind = "InsufficientPlayers"
	KindInvalidState         Kind = "InvalidState"
	KindNotYourTurn          Kind = "NotYourTurn"
	KindOutOfRange           Kind = "OutOfRange"
	KindAlreadyCalled        Kind = "AlreadyCalled"
	KindAuthenticationFailed Kind = "AuthenticationFailed"
	KindNotInRoom            Kind = "NotInRoom"
	KindInvalidMessage       Kind = "InvalidMessage"
	KindRateLimited          Kind = "RateLimited"
	KindInternal             Kind = "Internal"
)

// Error is a rejected room operation. Values are compared with errors.Is against the
// sentinels below, which may be wrapped with extra context.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// NewError builds an Error for kinds that are raised outside this package.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrRoomNotFound         = NewError(KindRoomNotFound, "room not found")
	ErrRoomFull             = NewError(KindRoomFull, "room is full")
	ErrAlreadyInRoom        = NewError(KindAlreadyInRoom, "already hosting an open room")
	ErrNotHost              = NewError(KindNotHost, "only the host can do that")
	ErrInsufficientPlayers  = NewError(KindInsufficientPlayers, "at least 2 players are required")
	ErrInvalidState         = NewError(KindInvalidState, "not allowed in the current room state")
	ErrNotYourTurn          = NewError(KindNotYourTurn, "it is not your turn")
	ErrOutOfRange           = NewError(KindOutOfRange, "value out of range")
	ErrAlreadyCalled        = NewError(KindAlreadyCalled, "number already called")
	ErrAuthenticationFailed = NewError(KindAuthenticationFailed, "authentication failed")
	ErrNotInRoom            = NewError(KindNotInRoom, "not a member of this room")
	ErrInvalidMessage       = NewError(KindInvalidMessage, "invalid message")
	ErrRateLimited          = NewError(KindRateLimited, "too many messages")
	ErrInternal             = NewError(KindInternal, "internal error")
)

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
