// internal/room/room.go
package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/bingo"
)

// Status is a room's lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"   // one player, or fewer than MinPlayers
	StatusReady     Status = "ready"     // enough players, host may start
	StatusActive    Status = "active"    // numbers are being called
	StatusCompleted Status = "completed" // terminal, winner set
)

const (
	MinPlayers        = 2
	DefaultMaxPlayers = 4
	MaxPlayersLimit   = 8
)

// Policy holds the per-process room rules.
type Policy struct {
	MaxPlayers   int
	WinThreshold int
	// TurnTimeout force-advances a turn that has not called a number in time. Zero disables it.
	TurnTimeout time.Duration
	// CompletedTTL is how long a finished room is kept for result display. Zero keeps it until it empties.
	CompletedTTL time.Duration
}

// DefaultPolicy returns the standard rules: 4 players, 5 lines to win.
func DefaultPolicy() Policy {
	return Policy{
		MaxPlayers:   DefaultMaxPlayers,
		WinThreshold: bingo.DefaultWinThreshold,
		TurnTimeout:  60 * time.Second,
		CompletedTTL: 10 * time.Minute,
	}
}

// Player is one member of a room.
type Player struct {
	UserID   string
	Username string
	IsHost   bool
	JoinedAt time.Time

	// ConnID is the player's current connection handle. Reconnecting replaces it in place.
	ConnID uuid.UUID

	// Board is dealt when the game starts and kept until the room resets.
	Board *bingo.Board
	// Calls counts the numbers this player called in the current game.
	Calls int
}

// Room is the in-memory state of one session. It has no locking of its own: every
// method must be called from the goroutine that owns the registry.
type Room struct {
	Code       string
	Players    []*Player // join order; drives turn rotation and host fallback
	Status     Status
	MaxPlayers int
	Called     bingo.Called

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	GameID        uuid.UUID // assigned on start, cleared on reset
	CurrentTurn   string    // userID whose turn it is while active
	TurnStartedAt time.Time
	WinnerID      string
	WinnerLines   int

	// Seq numbers room broadcasts so clients can detect gaps and resync.
	Seq uint64
	// ActionIndex numbers entries in the action log.
	ActionIndex int

	// readyLatched records that the room has announced readiness once. It is never cleared.
	readyLatched bool

	policy Policy
}

// New creates a waiting room with the given host.
func New(code, hostID, hostName string, connID uuid.UUID, policy Policy, now time.Time) *Room {
	if policy.MaxPlayers < MinPlayers {
		policy.MaxPlayers = DefaultMaxPlayers
	}
	if policy.WinThreshold < 1 {
		policy.WinThreshold = bingo.DefaultWinThreshold
	}
	return &Room{
		Code: code,
		Players: []*Player{{
			UserID:   hostID,
			Username: hostName,
			IsHost:   true,
			JoinedAt: now,
			ConnID:   connID,
		}},
		Status:     StatusWaiting,
		MaxPlayers: policy.MaxPlayers,
		CreatedAt:  now,
		policy:     policy,
	}
}

// Threshold is the completed-line count that wins in this room.
func (r *Room) Threshold() int { return r.policy.WinThreshold }

// Player looks up a member by user id.
func (r *Room) Player(userID string) *Player {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Host returns the current host, or nil for an empty room.
func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// Winner returns the winning player if they are still in the room.
func (r *Room) Winner() *Player {
	if r.WinnerID == "" {
		return nil
	}
	return r.Player(r.WinnerID)
}

// NextSeq advances and returns the broadcast sequence number.
func (r *Room) NextSeq() uint64 {
	r.Seq++
	return r.Seq
}

// NextActionIndex advances and returns the action log index.
func (r *Room) NextActionIndex() int {
	r.ActionIndex++
	return r.ActionIndex
}

func (r *Room) indexOf(userID string) int {
	for i, p := range r.Players {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// PlayerView is the public part of a Player.
type PlayerView struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Snapshot is a full, copy-on-read view of a room.
type Snapshot struct {
	RoomCode       string       `json:"roomCode"`
	Players        []PlayerView `json:"players"`
	Status         Status       `json:"status"`
	MaxPlayers     int          `json:"maxPlayers"`
	HostID         string       `json:"hostId,omitempty"`
	CurrentPlayer  string       `json:"currentPlayer,omitempty"`
	CalledNumbers  []int        `json:"calledNumbers"`
	WinnerID       string       `json:"winner,omitempty"`
	WinnerUsername string       `json:"winnerUsername,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	Seq            uint64       `json:"seq"`
	// Board is only filled for the viewing player.
	Board *bingo.Board `json:"board,omitempty"`
}

// Snapshot copies the room state. viewerID selects whose board is included; pass "" for none.
func (r *Room) Snapshot(viewerID string) Snapshot {
	s := Snapshot{
		RoomCode:      r.Code,
		Players:       r.Roster(),
		Status:        r.Status,
		MaxPlayers:    r.MaxPlayers,
		CalledNumbers: r.Called.Numbers(),
		CreatedAt:     r.CreatedAt,
		Seq:           r.Seq,
	}
	if h := r.Host(); h != nil {
		s.HostID = h.UserID
	}
	if r.Status == StatusActive {
		s.CurrentPlayer = r.CurrentTurn
	}
	if r.Status == StatusCompleted {
		s.WinnerID = r.WinnerID
		if w := r.Winner(); w != nil {
			s.WinnerUsername = w.Username
		}
		at := r.CompletedAt
		s.CompletedAt = &at
	}
	if p := r.Player(viewerID); p != nil && p.Board != nil {
		b := *p.Board
		s.Board = &b
	}
	return s
}

// Roster returns the public player list in join order.
func (r *Room) Roster() []PlayerView {
	out := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, PlayerView{
			UserID:   p.UserID,
			Username: p.Username,
			IsHost:   p.IsHost,
			JoinedAt: p.JoinedAt,
		})
	}
	return out
}
