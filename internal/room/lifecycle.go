// internal/room/lifecycle.go
package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/bingo"
)

// JoinResult describes what a successful Join changed.
type JoinResult struct {
	Player *Player
	// Reconnected is set when the user was already a member; only the connection handle changed.
	Reconnected bool
	// BecameReady is set on the first waiting -> ready transition only. A room that
	// fell back to waiting becomes ready again silently.
	BecameReady bool
}

// Join adds a player, or rebinds an existing member's connection.
func (r *Room) Join(userID, username string, connID uuid.UUID, now time.Time) (JoinResult, error) {
	if p := r.Player(userID); p != nil {
		p.ConnID = connID
		if username != "" {
			p.Username = username
		}
		return JoinResult{Player: p, Reconnected: true}, nil
	}

	if r.Status == StatusActive || r.Status == StatusCompleted {
		return JoinResult{}, fmt.Errorf("%w: room %s is %s", ErrInvalidState, r.Code, r.Status)
	}
	if len(r.Players) >= r.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}

	p := &Player{
		UserID:   userID,
		Username: username,
		JoinedAt: now,
		ConnID:   connID,
	}
	r.Players = append(r.Players, p)

	res := JoinResult{Player: p}
	if r.Status == StatusWaiting && len(r.Players) >= MinPlayers {
		r.Status = StatusReady
		res.BecameReady = !r.readyLatched
		r.readyLatched = true
	}
	return res, nil
}

// LeaveResult describes what a Leave changed.
type LeaveResult struct {
	Player *Player // the removed player
	Empty  bool    // the room has no players left and must be deleted

	NewHost *Player // set when the host left and someone was promoted

	// StatusReverted is set when the room fell back to waiting.
	StatusReverted bool
	// Abandoned is set when an active game lost too many players and was reset.
	// AbandonedGame holds the id the game had before the reset.
	Abandoned     bool
	AbandonedGame uuid.UUID
	// TurnPassedTo is set when the leaver held the turn in a game that continues.
	TurnPassedTo *Player
}

// Leave removes a member. Disconnects and explicit leaves share this path.
func (r *Room) Leave(userID string, now time.Time) (LeaveResult, error) {
	idx := r.indexOf(userID)
	if idx < 0 {
		return LeaveResult{}, ErrNotInRoom
	}
	leaving := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	res := LeaveResult{Player: leaving}
	if len(r.Players) == 0 {
		res.Empty = true
		return res, nil
	}

	if leaving.IsHost {
		leaving.IsHost = false
		r.Players[0].IsHost = true
		res.NewHost = r.Players[0]
	}

	switch r.Status {
	case StatusReady:
		if len(r.Players) < MinPlayers {
			r.Status = StatusWaiting
			res.StatusReverted = true
		}
	case StatusActive:
		if len(r.Players) < MinPlayers {
			res.AbandonedGame = r.GameID
			r.resetGame()
			res.StatusReverted = true
			res.Abandoned = true
			break
		}
		if r.CurrentTurn == userID {
			// the player that followed the leaver now sits at idx
			next := r.Players[idx%len(r.Players)]
			r.CurrentTurn = next.UserID
			r.TurnStartedAt = now
			res.TurnPassedTo = next
		}
	}
	return res, nil
}

// resetGame drops all game progress and returns the room to waiting.
func (r *Room) resetGame() {
	r.Status = StatusWaiting
	r.Called.Reset()
	r.GameID = uuid.Nil
	r.CurrentTurn = ""
	r.TurnStartedAt = time.Time{}
	r.StartedAt = time.Time{}
	for _, p := range r.Players {
		p.Board = nil
		p.Calls = 0
	}
}

// StartResult describes a successful Start.
type StartResult struct {
	// AlreadyStarted is set when the room was already active; nothing changed.
	AlreadyStarted bool
}

// Start moves a ready room to active, deals boards and gives the first turn to the host.
// Starting an active room is idempotent.
func (r *Room) Start(requesterID string, now time.Time, deal func() bingo.Board) (StartResult, error) {
	host := r.Host()
	if host == nil || host.UserID != requesterID {
		return StartResult{}, ErrNotHost
	}
	if len(r.Players) < MinPlayers {
		return StartResult{}, ErrInsufficientPlayers
	}
	if r.Status == StatusActive {
		return StartResult{AlreadyStarted: true}, nil
	}
	if r.Status != StatusReady {
		return StartResult{}, fmt.Errorf("%w: room %s is %s", ErrInvalidState, r.Code, r.Status)
	}

	for _, p := range r.Players {
		b := deal()
		p.Board = &b
		p.Calls = 0
	}
	r.Called.Reset()
	r.GameID = uuid.New()
	r.Status = StatusActive
	r.StartedAt = now
	r.CurrentTurn = host.UserID
	r.TurnStartedAt = now
	return StartResult{}, nil
}

// UpdateSettings changes the room capacity before the game starts.
func (r *Room) UpdateSettings(requesterID string, maxPlayers int) error {
	host := r.Host()
	if host == nil || host.UserID != requesterID {
		return ErrNotHost
	}
	if r.Status != StatusWaiting && r.Status != StatusReady {
		return fmt.Errorf("%w: settings are locked once the game starts", ErrInvalidState)
	}
	low := max(MinPlayers, len(r.Players))
	if maxPlayers < low || maxPlayers > MaxPlayersLimit {
		return fmt.Errorf("%w: maxPlayers must be between %d and %d", ErrOutOfRange, low, MaxPlayersLimit)
	}
	r.MaxPlayers = maxPlayers
	return nil
}

// Expired reports whether a completed room has outlived its display window.
func (r *Room) Expired(now time.Time) bool {
	return r.Status == StatusCompleted &&
		r.policy.CompletedTTL > 0 &&
		now.Sub(r.CompletedAt) >= r.policy.CompletedTTL
}
