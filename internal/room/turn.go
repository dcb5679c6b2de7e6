// internal/room/turn.go
package room

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/bingo/internal/bingo"
)

// CallResult describes a successful CallNumber.
type CallResult struct {
	Number      int
	Caller      *Player
	TotalCalled int
	// Lines is the caller's completed-line count after the call.
	Lines int
	// Won is set when the call completed the game; Next is nil in that case.
	Won  bool
	Next *Player
}

// CallNumber records a number for the player whose turn it is, evaluates the caller's
// board, and either completes the game or rotates the turn.
func (r *Room) CallNumber(callerID string, n int, now time.Time) (CallResult, error) {
	if r.Status != StatusActive {
		return CallResult{}, fmt.Errorf("%w: room %s is %s", ErrInvalidState, r.Code, r.Status)
	}
	if r.CurrentTurn != callerID {
		return CallResult{}, ErrNotYourTurn
	}
	if n < 1 || n > bingo.MaxNumber {
		return CallResult{}, fmt.Errorf("%w: number must be between 1 and %d", ErrOutOfRange, bingo.MaxNumber)
	}
	if r.Called.Has(n) {
		return CallResult{}, ErrAlreadyCalled
	}
	caller := r.Player(callerID)
	if caller == nil {
		return CallResult{}, ErrNotInRoom
	}

	r.Called.Add(n)
	caller.Calls++

	res := CallResult{
		Number:      n,
		Caller:      caller,
		TotalCalled: r.Called.Len(),
		Lines:       r.LinesFor(caller),
	}
	if bingo.IsWin(res.Lines, r.policy.WinThreshold) {
		r.complete(caller, res.Lines, now)
		res.Won = true
		return res, nil
	}

	res.Next = r.advanceFrom(callerID, now)
	return res, nil
}

// WinCheck is the outcome of an explicit win claim.
type WinCheck struct {
	Lines     int
	Threshold int
	Won       bool
}

// CheckWin evaluates a member's own board against the called numbers. If claimed is
// non-nil it must match the board dealt to that player.
func (r *Room) CheckWin(userID string, claimed *bingo.Board, now time.Time) (WinCheck, error) {
	if r.Status != StatusActive {
		return WinCheck{}, fmt.Errorf("%w: room %s is %s", ErrInvalidState, r.Code, r.Status)
	}
	p := r.Player(userID)
	if p == nil {
		return WinCheck{}, ErrNotInRoom
	}
	if p.Board == nil {
		return WinCheck{}, fmt.Errorf("%w: no board dealt", ErrInvalidState)
	}
	if claimed != nil && *claimed != *p.Board {
		return WinCheck{}, fmt.Errorf("%w: board does not match the one dealt", ErrInvalidMessage)
	}

	wc := WinCheck{Lines: r.LinesFor(p), Threshold: r.policy.WinThreshold}
	if bingo.IsWin(wc.Lines, wc.Threshold) {
		r.complete(p, wc.Lines, now)
		wc.Won = true
	}
	return wc, nil
}

// LinesFor evaluates a player's board; players without a board have no lines.
func (r *Room) LinesFor(p *Player) int {
	if p == nil || p.Board == nil {
		return 0
	}
	return bingo.Evaluate(*p.Board, &r.Called)
}

// ExpireTurn force-advances a turn that exceeded the turn timeout.
// It returns the players the turn moved between, or ok=false if nothing changed.
func (r *Room) ExpireTurn(now time.Time) (from, to *Player, ok bool) {
	if r.Status != StatusActive || r.policy.TurnTimeout <= 0 {
		return nil, nil, false
	}
	if now.Sub(r.TurnStartedAt) < r.policy.TurnTimeout {
		return nil, nil, false
	}
	from = r.Player(r.CurrentTurn)
	to = r.advanceFrom(r.CurrentTurn, now)
	return from, to, to != nil
}

// advanceFrom hands the turn to the player after userID in join order, wrapping around.
func (r *Room) advanceFrom(userID string, now time.Time) *Player {
	if len(r.Players) == 0 {
		return nil
	}
	idx := r.indexOf(userID)
	next := r.Players[(idx+1)%len(r.Players)]
	r.CurrentTurn = next.UserID
	r.TurnStartedAt = now
	return next
}

func (r *Room) complete(winner *Player, lines int, now time.Time) {
	r.Status = StatusCompleted
	r.WinnerID = winner.UserID
	r.WinnerLines = lines
	r.CompletedAt = now
	r.CurrentTurn = ""
}
