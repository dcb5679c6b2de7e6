// internal/room/room_test.go
package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/bingo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// rowBoard lays out 1..25 row by row so tests can reason about lines.
func rowBoard() bingo.Board {
	var b bingo.Board
	for i := 0; i < bingo.MaxNumber; i++ {
		b[i/bingo.BoardSize][i%bingo.BoardSize] = i + 1
	}
	return b
}

// newTestRoom creates a room with numPlayers members named p0..pN; p0 hosts.
func newTestRoom(t *testing.T, numPlayers int, policy Policy) *Room {
	t.Helper()
	r := New("ABC234", "p0", "player0", uuid.New(), policy, t0)
	for i := 1; i < numPlayers; i++ {
		_, err := r.Join(fmt.Sprintf("p%d", i), fmt.Sprintf("player%d", i), uuid.New(), t0)
		require.NoError(t, err)
	}
	return r
}

func startedRoom(t *testing.T, numPlayers int, policy Policy) *Room {
	t.Helper()
	r := newTestRoom(t, numPlayers, policy)
	_, err := r.Start("p0", t0, rowBoard)
	require.NoError(t, err)
	return r
}

func hostCount(r *Room) int {
	n := 0
	for _, p := range r.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestNewRoomHasSingleHostWaiting(t *testing.T) {
	r := New("ABC234", "host", "Host", uuid.New(), DefaultPolicy(), t0)
	assert.Equal(t, StatusWaiting, r.Status)
	require.Len(t, r.Players, 1)
	assert.True(t, r.Players[0].IsHost)
	assert.Equal(t, DefaultMaxPlayers, r.MaxPlayers)
	assert.Equal(t, bingo.DefaultWinThreshold, r.Threshold())
}

func TestJoinFlipsToReadyOnce(t *testing.T) {
	r := New("ABC234", "p0", "player0", uuid.New(), DefaultPolicy(), t0)

	res, err := r.Join("p1", "player1", uuid.New(), t0)
	require.NoError(t, err)
	assert.True(t, res.BecameReady)
	assert.False(t, res.Reconnected)
	assert.Equal(t, StatusReady, r.Status)

	res, err = r.Join("p2", "player2", uuid.New(), t0)
	require.NoError(t, err)
	assert.False(t, res.BecameReady, "third join must not re-fire the ready latch")
	assert.Equal(t, StatusReady, r.Status)
}

func TestJoinRespectsCapacity(t *testing.T) {
	r := newTestRoom(t, DefaultMaxPlayers, DefaultPolicy())
	for i := 0; i < 10; i++ {
		_, err := r.Join(fmt.Sprintf("extra%d", i), "extra", uuid.New(), t0)
		assert.ErrorIs(t, err, ErrRoomFull)
		assert.LessOrEqual(t, len(r.Players), r.MaxPlayers)
	}
}

func TestReconnectDoesNotDuplicate(t *testing.T) {
	r := newTestRoom(t, 2, DefaultPolicy())
	newConn := uuid.New()

	res, err := r.Join("p1", "renamed", newConn, t0)
	require.NoError(t, err)
	assert.True(t, res.Reconnected)
	assert.Len(t, r.Players, 2)
	assert.Equal(t, newConn, r.Player("p1").ConnID)
	assert.Equal(t, "renamed", r.Player("p1").Username)
}

func TestReconnectAllowedWhileActive(t *testing.T) {
	r := startedRoom(t, 2, DefaultPolicy())
	_, err := r.CallNumber("p0", 17, t0)
	require.NoError(t, err)

	res, err := r.Join("p1", "", uuid.New(), t0)
	require.NoError(t, err)
	assert.True(t, res.Reconnected)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, 1, r.Called.Len(), "reconnect must not reset progress")
	assert.Equal(t, "player1", r.Player("p1").Username)

	_, err = r.Join("late", "Late", uuid.New(), t0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLeaveReassignsHostAndReverts(t *testing.T) {
	r := newTestRoom(t, 2, DefaultPolicy())

	res, err := r.Leave("p0", t0)
	require.NoError(t, err)
	require.NotNil(t, res.NewHost)
	assert.Equal(t, "p1", res.NewHost.UserID)
	assert.True(t, res.StatusReverted)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, 1, hostCount(r))

	res, err = r.Leave("p1", t0)
	require.NoError(t, err)
	assert.True(t, res.Empty)

	_, err = r.Leave("p1", t0)
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestExactlyOneHostThroughChurn(t *testing.T) {
	r := newTestRoom(t, 4, DefaultPolicy())
	for _, id := range []string{"p0", "p2", "p1"} {
		_, err := r.Leave(id, t0)
		require.NoError(t, err)
		assert.Equal(t, 1, hostCount(r))
		_, err = r.Join(id+"b", "again", uuid.New(), t0)
		require.NoError(t, err)
		assert.Equal(t, 1, hostCount(r))
	}
}

func TestReadyLatchDoesNotRefireAfterRevert(t *testing.T) {
	r := newTestRoom(t, 2, DefaultPolicy())
	_, err := r.Leave("p1", t0)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, r.Status)

	res, err := r.Join("p9", "player9", uuid.New(), t0)
	require.NoError(t, err)
	assert.False(t, res.BecameReady)
	assert.Equal(t, StatusReady, r.Status, "the status still follows the player count")

	_, err = r.Start("p0", t0, rowBoard)
	require.NoError(t, err)
}

func TestStartErrors(t *testing.T) {
	r := New("ABC234", "p0", "player0", uuid.New(), DefaultPolicy(), t0)
	_, err := r.Start("p0", t0, rowBoard)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	_, err = r.Join("p1", "player1", uuid.New(), t0)
	require.NoError(t, err)
	_, err = r.Start("p1", t0, rowBoard)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = r.Start("stranger", t0, rowBoard)
	assert.ErrorIs(t, err, ErrNotHost)

	res, err := r.Start("p0", t0, rowBoard)
	require.NoError(t, err)
	assert.False(t, res.AlreadyStarted)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, "p0", r.CurrentTurn)
	assert.NotEqual(t, uuid.Nil, r.GameID)
	for _, p := range r.Players {
		require.NotNil(t, p.Board)
	}

	res, err = r.Start("p0", t0, rowBoard)
	require.NoError(t, err)
	assert.True(t, res.AlreadyStarted)
}

func TestStartRejectsCompletedRoom(t *testing.T) {
	r := startedRoom(t, 2, Policy{MaxPlayers: 4, WinThreshold: 1})
	for _, n := range []int{1, 6, 2, 7, 3, 8, 4, 9, 5} {
		_, err := r.CallNumber(r.CurrentTurn, n, t0)
		require.NoError(t, err)
		if r.Status == StatusCompleted {
			break
		}
	}
	require.Equal(t, StatusCompleted, r.Status)
	_, err := r.Start("p0", t0, rowBoard)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallNumberValidation(t *testing.T) {
	r := newTestRoom(t, 2, DefaultPolicy())
	_, err := r.CallNumber("p0", 5, t0)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = r.Start("p0", t0, rowBoard)
	require.NoError(t, err)

	_, err = r.CallNumber("p1", 5, t0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = r.CallNumber("p0", 0, t0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.CallNumber("p0", 26, t0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	res, err := r.CallNumber("p0", 17, t0)
	require.NoError(t, err)
	assert.Equal(t, 17, res.Number)
	assert.Equal(t, 1, res.TotalCalled)
	assert.False(t, res.Won)
	require.NotNil(t, res.Next)
	assert.Equal(t, "p1", res.Next.UserID)

	_, err = r.CallNumber("p1", 17, t0)
	assert.ErrorIs(t, err, ErrAlreadyCalled)
	assert.Equal(t, []int{17}, r.Called.Numbers(), "rejected call must not mutate")
	assert.Equal(t, "p1", r.CurrentTurn, "rejected call must not rotate")
}

func TestTurnRotationIsCyclic(t *testing.T) {
	for n := 2; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			r := startedRoom(t, n, Policy{MaxPlayers: 4, WinThreshold: bingo.MaxLines})
			seen := map[string]bool{}
			for i := 0; i < n; i++ {
				seen[r.CurrentTurn] = true
				_, err := r.CallNumber(r.CurrentTurn, i+1, t0)
				require.NoError(t, err)
			}
			assert.Len(t, seen, n)
			assert.Equal(t, "p0", r.CurrentTurn, "turn returns to host after a full cycle")
		})
	}
}

func TestCallCompletesGame(t *testing.T) {
	r := startedRoom(t, 2, Policy{MaxPlayers: 4, WinThreshold: 1})
	// host needs 1..5 for the first row; p1 calls numbers off that row.
	calls := []struct {
		who string
		n   int
	}{{"p0", 1}, {"p1", 11}, {"p0", 2}, {"p1", 12}, {"p0", 3}, {"p1", 13}, {"p0", 4}, {"p1", 14}}
	for _, c := range calls {
		res, err := r.CallNumber(c.who, c.n, t0)
		require.NoError(t, err)
		require.False(t, res.Won)
	}

	// 11..14 plus 15 would complete p1's third row, but it is p0's turn and 5 finishes row one first.
	res, err := r.CallNumber("p0", 5, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.Nil(t, res.Next)
	assert.Equal(t, 1, res.Lines)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "p0", r.WinnerID)
	assert.Equal(t, t0.Add(time.Minute), r.CompletedAt)

	_, err = r.CallNumber("p1", 15, t0)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = r.Join("late", "Late", uuid.New(), t0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCheckWin(t *testing.T) {
	r := startedRoom(t, 2, Policy{MaxPlayers: 4, WinThreshold: 1})

	wc, err := r.CheckWin("p1", nil, t0)
	require.NoError(t, err)
	assert.False(t, wc.Won)
	assert.Equal(t, 0, wc.Lines)
	assert.Equal(t, 1, wc.Threshold)

	other := rowBoard()
	other[0][0], other[0][1] = other[0][1], other[0][0]
	_, err = r.CheckWin("p1", &other, t0)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = r.CheckWin("stranger", nil, t0)
	assert.ErrorIs(t, err, ErrNotInRoom)

	// Both players hold the same layout, so p1 can claim the row p0's calls complete.
	for _, c := range []struct {
		who string
		n   int
	}{{"p0", 21}, {"p1", 22}, {"p0", 23}, {"p1", 24}} {
		_, err := r.CallNumber(c.who, c.n, t0)
		require.NoError(t, err)
	}
	own := rowBoard()
	wc, err = r.CheckWin("p1", &own, t0)
	require.NoError(t, err)
	assert.False(t, wc.Won)

	_, err = r.CallNumber("p0", 1, t0)
	require.NoError(t, err)
	_, err = r.CallNumber("p1", 25, t0)
	require.NoError(t, err)
	// p1's own call completed the bottom row for everyone; the caller wins first.
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "p1", r.WinnerID)
}

func TestLeaveDuringActiveGame(t *testing.T) {
	t.Run("turn holder leaves", func(t *testing.T) {
		r := startedRoom(t, 3, DefaultPolicy())
		_, err := r.CallNumber("p0", 1, t0)
		require.NoError(t, err)
		require.Equal(t, "p1", r.CurrentTurn)

		res, err := r.Leave("p1", t0)
		require.NoError(t, err)
		require.NotNil(t, res.TurnPassedTo)
		assert.Equal(t, "p2", res.TurnPassedTo.UserID)
		assert.Equal(t, StatusActive, r.Status)
	})

	t.Run("last in order wraps to first", func(t *testing.T) {
		r := startedRoom(t, 3, DefaultPolicy())
		for _, n := range []int{1, 2} {
			_, err := r.CallNumber(r.CurrentTurn, n, t0)
			require.NoError(t, err)
		}
		require.Equal(t, "p2", r.CurrentTurn)
		res, err := r.Leave("p2", t0)
		require.NoError(t, err)
		assert.Equal(t, "p0", res.TurnPassedTo.UserID)
	})

	t.Run("dropping below two abandons the game", func(t *testing.T) {
		r := startedRoom(t, 2, DefaultPolicy())
		_, err := r.CallNumber("p0", 17, t0)
		require.NoError(t, err)
		gameID := r.GameID

		res, err := r.Leave("p1", t0)
		require.NoError(t, err)
		assert.True(t, res.Abandoned)
		assert.Equal(t, gameID, res.AbandonedGame)
		assert.True(t, res.StatusReverted)
		assert.Equal(t, StatusWaiting, r.Status)
		assert.Equal(t, 0, r.Called.Len())
		assert.Equal(t, uuid.Nil, r.GameID)
		assert.Nil(t, r.Players[0].Board)
	})
}

func TestExpireTurn(t *testing.T) {
	r := startedRoom(t, 3, Policy{MaxPlayers: 4, WinThreshold: 5, TurnTimeout: 30 * time.Second})

	_, _, ok := r.ExpireTurn(t0.Add(10 * time.Second))
	assert.False(t, ok)

	from, to, ok := r.ExpireTurn(t0.Add(31 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "p0", from.UserID)
	assert.Equal(t, "p1", to.UserID)
	assert.Equal(t, t0.Add(31*time.Second), r.TurnStartedAt)

	disabled := startedRoom(t, 2, Policy{MaxPlayers: 4, WinThreshold: 5})
	_, _, ok = disabled.ExpireTurn(t0.Add(time.Hour))
	assert.False(t, ok)
}

func TestUpdateSettings(t *testing.T) {
	r := newTestRoom(t, 3, DefaultPolicy())
	assert.ErrorIs(t, r.UpdateSettings("p1", 6), ErrNotHost)
	assert.ErrorIs(t, r.UpdateSettings("p0", 2), ErrOutOfRange, "cannot shrink below current roster")
	assert.ErrorIs(t, r.UpdateSettings("p0", MaxPlayersLimit+1), ErrOutOfRange)
	require.NoError(t, r.UpdateSettings("p0", 8))
	assert.Equal(t, 8, r.MaxPlayers)

	_, err := r.Start("p0", t0, rowBoard)
	require.NoError(t, err)
	assert.ErrorIs(t, r.UpdateSettings("p0", 5), ErrInvalidState)
}

func TestSnapshotShowsOnlyViewerBoard(t *testing.T) {
	r := startedRoom(t, 2, DefaultPolicy())
	s := r.Snapshot("p1")
	require.NotNil(t, s.Board)
	assert.Equal(t, rowBoard(), *s.Board)
	assert.Equal(t, "p0", s.CurrentPlayer)
	assert.Equal(t, "p0", s.HostID)
	assert.Len(t, s.Players, 2)

	assert.Nil(t, r.Snapshot("").Board)
}

func TestExpired(t *testing.T) {
	r := startedRoom(t, 2, Policy{MaxPlayers: 4, WinThreshold: 1, CompletedTTL: time.Minute})
	assert.False(t, r.Expired(t0.Add(time.Hour)), "active rooms never expire")
	for _, n := range []int{1, 6, 2, 7, 3, 8, 4, 9, 5} {
		if _, err := r.CallNumber(r.CurrentTurn, n, t0); err != nil {
			t.Fatalf("call %d: %v", n, err)
		}
		if r.Status == StatusCompleted {
			break
		}
	}
	assert.False(t, r.Expired(t0.Add(30*time.Second)))
	assert.True(t, r.Expired(t0.Add(time.Minute)))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrRoomFull)
	assert.Equal(t, KindRoomFull, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
}
