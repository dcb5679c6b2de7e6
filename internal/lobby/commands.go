// internal/lobby/commands.go
package lobby

import (
	"fmt"

	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/protocol"
	"github.com/jason-s-yu/bingo/internal/room"
)

func (c *Coordinator) dispatch(conn *Connection, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case *protocol.CreateRoom:
		return c.createRoom(conn, cmd)
	case *protocol.JoinRoom:
		return c.joinRoom(conn, cmd)
	case *protocol.LeaveRoom:
		return c.leaveRoom(conn, cmd)
	case *protocol.StartGame:
		return c.startGame(conn, cmd)
	case *protocol.CallNumber:
		return c.callNumber(conn, cmd)
	case *protocol.CheckWin:
		return c.checkWin(conn, cmd)
	case *protocol.SendMessage:
		return c.sendMessage(conn, cmd)
	case *protocol.UpdateRoomSettings:
		return c.updateSettings(conn, cmd)
	case *protocol.Resync:
		return c.resync(conn, cmd)
	default:
		return fmt.Errorf("%w: unsupported command %s", room.ErrInvalidMessage, cmd.Type())
	}
}

// identity checks an optional userId in the payload against the authenticated user
// and picks the display name.
func identity(conn *Connection, userID, username string) (string, error) {
	if userID != "" && userID != conn.UserID {
		return "", room.ErrAuthenticationFailed
	}
	if username == "" {
		username = conn.Username
	}
	return username, nil
}

func (c *Coordinator) createRoom(conn *Connection, cmd *protocol.CreateRoom) error {
	username, err := identity(conn, cmd.UserID, cmd.Username)
	if err != nil {
		return err
	}
	for code := range c.memberships[conn.UserID] {
		r := c.rooms[code]
		if h := r.Host(); h != nil && h.UserID == conn.UserID && r.Status != room.StatusCompleted {
			return fmt.Errorf("%w: %s", room.ErrAlreadyInRoom, code)
		}
	}

	code, err := c.codes.Generate(func(code string) bool {
		_, taken := c.rooms[code]
		return taken
	})
	if err != nil {
		return err
	}

	now := c.now()
	r := room.New(code, conn.UserID, username, conn.ID, c.policy, now)
	c.rooms[code] = r
	c.addMembership(conn.UserID, code)

	c.logger.Infof("Room %s: created by %s (%s)", code, username, conn.UserID)
	// roomCreated opens the sequence at 1; seq 0 means the event is not room-scoped
	r.NextSeq()
	c.send(conn, r, protocol.SnapshotEvent(protocol.EventRoomCreated, r.Snapshot(conn.UserID)))
	c.emit(r, conn.UserID, models.ActionRoomCreated, map[string]interface{}{"maxPlayers": r.MaxPlayers})
	return nil
}

func (c *Coordinator) joinRoom(conn *Connection, cmd *protocol.JoinRoom) error {
	username, err := identity(conn, cmd.UserID, cmd.Username)
	if err != nil {
		return err
	}
	r, err := c.lookup(cmd.RoomCode)
	if err != nil {
		return err
	}
	res, err := r.Join(conn.UserID, username, conn.ID, c.now())
	if err != nil {
		return err
	}

	if res.Reconnected {
		c.logger.Infof("Room %s: %s reconnected", r.Code, conn.UserID)
		c.send(conn, r, protocol.SnapshotEvent(protocol.EventRoomJoined, r.Snapshot(conn.UserID)))
		c.replayProgress(conn, r, res.Player)
		return nil
	}

	c.addMembership(conn.UserID, r.Code)
	c.logger.Infof("Room %s: %s joined (%d/%d)", r.Code, username, len(r.Players), r.MaxPlayers)

	c.broadcast(r, withRoster(r, protocol.Event{
		Type:     protocol.EventPlayerJoined,
		UserID:   conn.UserID,
		Username: username,
	}), conn.UserID)
	c.broadcastSnapshot(r, protocol.EventRoomJoined, nil)
	c.emit(r, conn.UserID, models.ActionPlayerJoined, map[string]interface{}{"username": username})

	if res.BecameReady {
		c.logger.Infof("Room %s: ready", r.Code)
		c.broadcastSnapshot(r, protocol.EventGameReady, nil)
	}
	return nil
}

// replayProgress brings a reconnecting player up to the room's current stage.
func (c *Coordinator) replayProgress(conn *Connection, r *room.Room, p *room.Player) {
	switch r.Status {
	case room.StatusReady:
		c.send(conn, r, protocol.SnapshotEvent(protocol.EventGameReady, r.Snapshot(conn.UserID)))
	case room.StatusActive:
		c.send(conn, r, protocol.SnapshotEvent(protocol.EventGameStarted, r.Snapshot(conn.UserID)))
		if p.Board != nil {
			b := *p.Board
			c.send(conn, r, protocol.Event{Type: protocol.EventBoardAssigned, Board: &b})
		}
	}
}

func (c *Coordinator) leaveRoom(conn *Connection, cmd *protocol.LeaveRoom) error {
	r, err := c.lookup(cmd.RoomCode)
	if err != nil {
		return err
	}
	res, err := r.Leave(conn.UserID, c.now())
	if err != nil {
		return err
	}
	c.logger.Infof("Room %s: %s left", r.Code, conn.UserID)
	conn.Write(protocol.Event{Type: protocol.EventRoomLeft, RoomCode: r.Code})
	c.afterLeave(r, res, protocol.ReasonLeft)
	return nil
}

// afterLeave notifies the remaining members after a player was removed, whether by
// leaveRoom or by disconnect.
func (c *Coordinator) afterLeave(r *room.Room, res room.LeaveResult, reason string) {
	left := res.Player
	c.dropMembership(left.UserID, r.Code)
	c.emit(r, left.UserID, models.ActionPlayerLeft, map[string]interface{}{"reason": reason})

	if res.Empty {
		c.logger.Infof("Room %s: empty, deleting", r.Code)
		delete(c.rooms, r.Code)
		c.emit(r, "", models.ActionRoomClosed, nil)
		return
	}

	if res.Abandoned {
		c.logger.Infof("Room %s: game abandoned, not enough players", r.Code)
		c.emitFor(r, res.AbandonedGame, "", models.ActionGameAbandoned, map[string]interface{}{"reason": reason})
	}

	c.broadcastSnapshot(r, protocol.EventPlayerLeft, func(ev *protocol.Event, _ *room.Player) {
		ev.UserID = left.UserID
		ev.Username = left.Username
		ev.Reason = reason
	})

	if next := res.TurnPassedTo; next != nil {
		c.broadcast(r, protocol.Event{
			Type:                  protocol.EventTurnSwitched,
			CurrentPlayer:         left.UserID,
			CurrentPlayerUsername: left.Username,
			NextPlayer:            next.UserID,
			NextPlayerUsername:    next.Username,
			Reason:                protocol.ReasonPlayerLeft,
		}, "")
	}
}

func (c *Coordinator) startGame(conn *Connection, cmd *protocol.StartGame) error {
	r, err := c.lookup(cmd.RoomCode)
	if err != nil {
		return err
	}
	res, err := r.Start(conn.UserID, c.now(), c.deal)
	if err != nil {
		return err
	}
	if res.AlreadyStarted {
		c.send(conn, r, protocol.SnapshotEvent(protocol.EventGameStarted, r.Snapshot(conn.UserID)))
		return nil
	}

	c.logger.Infof("Room %s: game %s started with %d players", r.Code, r.GameID, len(r.Players))
	c.broadcastSnapshot(r, protocol.EventGameStarted, nil)
	players := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.UserID)
		if pc := c.conns[p.ConnID]; pc != nil {
			b := *p.Board
			c.send(pc, r, protocol.Event{Type: protocol.EventBoardAssigned, Board: &b})
		}
	}
	c.emit(r, conn.UserID, models.ActionGameStarted, map[string]interface{}{"players": players})
	return nil
}

func (c *Coordinator) callNumber(conn *Connection, cmd *protocol.CallNumber) error {
	r, _, err := c.member(conn, cmd.RoomCode)
	if err != nil {
		return err
	}
	now := c.now()
	res, err := r.CallNumber(conn.UserID, cmd.Number, now)
	if err != nil {
		return err
	}

	c.broadcast(r, protocol.Event{
		Type:             protocol.EventNumberCalled,
		Number:           res.Number,
		CalledBy:         res.Caller.UserID,
		CalledByUsername: res.Caller.Username,
		CalledAt:         &now,
		TotalCalled:      res.TotalCalled,
		CalledNumbers:    r.Called.Numbers(),
	}, "")
	c.emit(r, conn.UserID, models.ActionNumberCalled, map[string]interface{}{
		"number": res.Number,
		"lines":  res.Lines,
	})

	if res.Won {
		c.completeGame(r)
		return nil
	}
	c.broadcast(r, protocol.Event{
		Type:                  protocol.EventTurnSwitched,
		CurrentPlayer:         res.Caller.UserID,
		CurrentPlayerUsername: res.Caller.Username,
		NextPlayer:            res.Next.UserID,
		NextPlayerUsername:    res.Next.Username,
		Reason:                protocol.ReasonCalled,
	}, "")
	return nil
}

func (c *Coordinator) checkWin(conn *Connection, cmd *protocol.CheckWin) error {
	r, _, err := c.member(conn, cmd.RoomCode)
	if err != nil {
		return err
	}
	wc, err := r.CheckWin(conn.UserID, cmd.Board, c.now())
	if err != nil {
		return err
	}
	if wc.Won {
		c.completeGame(r)
		return nil
	}
	c.send(conn, r, protocol.Event{
		Type:      protocol.EventWinCheckResult,
		IsWinner:  protocol.Ptr(false),
		Lines:     protocol.Ptr(wc.Lines),
		Threshold: wc.Threshold,
	})
	return nil
}

// completeGame announces the winner and hands the result to the recorder.
func (c *Coordinator) completeGame(r *room.Room) {
	winner := r.Winner()
	c.logger.Infof("Room %s: %s won game %s with %d lines", r.Code, winner.Username, r.GameID, r.WinnerLines)

	c.broadcastSnapshot(r, protocol.EventGameCompleted, func(ev *protocol.Event, viewer *room.Player) {
		ev.Lines = protocol.Ptr(r.WinnerLines)
		ev.IsWinner = protocol.Ptr(viewer.UserID == winner.UserID)
	})
	c.emit(r, winner.UserID, models.ActionGameCompleted, map[string]interface{}{
		"winner":      winner.UserID,
		"lines":       r.WinnerLines,
		"totalCalled": r.Called.Len(),
	})
	c.record(r)
}

func (c *Coordinator) sendMessage(conn *Connection, cmd *protocol.SendMessage) error {
	r, p, err := c.member(conn, cmd.RoomCode)
	if err != nil {
		return err
	}
	now := c.now()
	c.broadcast(r, protocol.Event{
		Type:      protocol.EventNewMessage,
		UserID:    p.UserID,
		Username:  p.Username,
		Message:   cmd.Message,
		Timestamp: &now,
	}, "")
	return nil
}

func (c *Coordinator) updateSettings(conn *Connection, cmd *protocol.UpdateRoomSettings) error {
	r, err := c.lookup(cmd.RoomCode)
	if err != nil {
		return err
	}
	if err := r.UpdateSettings(conn.UserID, cmd.MaxPlayers); err != nil {
		return err
	}
	c.logger.Infof("Room %s: max players set to %d", r.Code, r.MaxPlayers)
	c.broadcastSnapshot(r, protocol.EventRoomUpdate, nil)
	return nil
}

func (c *Coordinator) resync(conn *Connection, cmd *protocol.Resync) error {
	r, _, err := c.member(conn, cmd.RoomCode)
	if err != nil {
		return err
	}
	if cmd.LastSeq < r.Seq {
		c.logger.Debugf("Room %s: resync for %s from seq %d to %d", r.Code, conn.UserID, cmd.LastSeq, r.Seq)
	}
	c.send(conn, r, protocol.SnapshotEvent(protocol.EventRoomState, r.Snapshot(conn.UserID)))
	return nil
}

// withRoster adds the roster and status to a delta event.
func withRoster(r *room.Room, ev protocol.Event) protocol.Event {
	ev.Players = r.Roster()
	ev.Status = r.Status
	ev.MaxPlayers = r.MaxPlayers
	return ev
}
