// internal/lobby/coordinator.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/bingo"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/jason-s-yu/bingo/internal/protocol"
	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by coordinator calls made after Run has returned.
var ErrStopped = errors.New("lobby: coordinator stopped")

const (
	defaultSweepInterval = time.Second
	sinkTimeout          = 2 * time.Second
	recordTimeout        = 10 * time.Second
	actionBuffer         = 256
)

// Coordinator owns the room registry. Every read and write of room state happens on
// the goroutine running Run; other goroutines submit closures and wait for them.
type Coordinator struct {
	logger   *logrus.Logger
	policy   room.Policy
	codes    *room.CodeGenerator
	deal     func() bingo.Board
	now      func() time.Time
	recorder ResultRecorder
	sinks    []ActionSink
	interval time.Duration

	cmds    chan func()
	actions chan models.RoomAction
	stopped chan struct{}

	// owned by the loop goroutine
	rooms       map[string]*room.Room
	conns       map[uuid.UUID]*Connection
	memberships map[string]map[string]struct{} // userID -> room codes
	guests      map[string]bool

	bg sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRecorder sets the store that receives finished games.
func WithRecorder(r ResultRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithSinks adds action log sinks.
func WithSinks(sinks ...ActionSink) Option {
	return func(c *Coordinator) { c.sinks = append(c.sinks, sinks...) }
}

// WithDealer replaces the random board dealer.
func WithDealer(deal func() bingo.Board) Option {
	return func(c *Coordinator) { c.deal = deal }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithCodeGenerator replaces the room code generator.
func WithCodeGenerator(g *room.CodeGenerator) Option {
	return func(c *Coordinator) { c.codes = g }
}

// WithSweepInterval sets how often turn timeouts and expired rooms are checked.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewCoordinator builds a coordinator with an empty registry. Call Run to start it.
func NewCoordinator(logger *logrus.Logger, policy room.Policy, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:      logger,
		policy:      policy,
		codes:       room.NewCodeGenerator(nil),
		deal:        bingo.Deal,
		now:         time.Now,
		interval:    defaultSweepInterval,
		cmds:        make(chan func()),
		actions:     make(chan models.RoomAction, actionBuffer),
		stopped:     make(chan struct{}),
		rooms:       make(map[string]*room.Room),
		conns:       make(map[uuid.UUID]*Connection),
		memberships: make(map[string]map[string]struct{}),
		guests:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes submitted operations and periodic sweeps until ctx is cancelled. It
// waits for in-flight persistence before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	sinkDone := make(chan struct{})
	go c.drainActions(sinkDone)

	c.logger.Infof("lobby: coordinator running (sweep every %s)", c.interval)
	defer func() {
		close(c.stopped)
		for _, conn := range c.conns {
			conn.signalShutdown()
		}
		close(c.actions)
		<-sinkDone
		c.bg.Wait()
		c.logger.Info("lobby: coordinator stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.cmds:
			c.exec(fn)
		case <-ticker.C:
			c.exec(func() { c.sweep(c.now()) })
		}
	}
}

func (c *Coordinator) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("lobby: recovered panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// do runs fn on the loop and waits for it to finish.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case c.cmds <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// Connect registers a live connection so broadcasts can reach it.
func (c *Coordinator) Connect(ctx context.Context, conn *Connection) error {
	return c.do(ctx, func() {
		c.conns[conn.ID] = conn
		c.guests[conn.UserID] = conn.Guest
	})
}

// Disconnect unregisters a connection and removes its user from every room where it
// is still the current connection. A connection already replaced by a reconnect
// leaves room state untouched.
func (c *Coordinator) Disconnect(ctx context.Context, conn *Connection) error {
	return c.do(ctx, func() {
		delete(c.conns, conn.ID)
		for code := range c.memberships[conn.UserID] {
			r := c.rooms[code]
			if r == nil {
				continue
			}
			p := r.Player(conn.UserID)
			if p == nil || p.ConnID != conn.ID {
				continue
			}
			res, err := r.Leave(conn.UserID, c.now())
			if err != nil {
				continue
			}
			c.logger.Infof("Room %s: %s disconnected", code, conn.UserID)
			c.afterLeave(r, res, protocol.ReasonDisconnected)
		}
		if _, inRoom := c.memberships[conn.UserID]; !inRoom && !c.connected(conn.UserID) {
			delete(c.guests, conn.UserID)
		}
	})
}

// Handle executes one decoded command for conn. Rejections are reported to the
// connection as error events and also returned.
func (c *Coordinator) Handle(ctx context.Context, conn *Connection, cmd protocol.Command) error {
	var cmdErr error
	err := c.do(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.WithField("user", conn.UserID).
					Errorf("lobby: panic handling %s: %v\n%s", cmd.Type(), r, debug.Stack())
				cmdErr = room.ErrInternal
				conn.WriteError(protocol.RoomCode(cmd), cmdErr)
			}
		}()
		cmdErr = c.dispatch(conn, cmd)
		if cmdErr != nil {
			conn.WriteError(protocol.RoomCode(cmd), cmdErr)
		}
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Snapshot returns the public view of a room.
func (c *Coordinator) Snapshot(ctx context.Context, code string) (room.Snapshot, error) {
	var (
		snap  room.Snapshot
		found bool
	)
	code = room.NormalizeCode(code)
	err := c.do(ctx, func() {
		if r, ok := c.rooms[code]; ok {
			snap = r.Snapshot("")
			found = true
		}
	})
	if err != nil {
		return room.Snapshot{}, err
	}
	if !found {
		return room.Snapshot{}, room.ErrRoomNotFound
	}
	return snap, nil
}

// Sweep runs the periodic checks as of now.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) error {
	return c.do(ctx, func() { c.sweep(now) })
}

// RoomCount reports how many rooms are registered.
func (c *Coordinator) RoomCount(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, func() { n = len(c.rooms) })
	return n, err
}

func (c *Coordinator) sweep(now time.Time) {
	for code, r := range c.rooms {
		if from, to, ok := r.ExpireTurn(now); ok {
			c.logger.Infof("Room %s: turn timed out, passing to %s", code, to.UserID)
			ev := protocol.Event{
				Type:               protocol.EventTurnSwitched,
				NextPlayer:         to.UserID,
				NextPlayerUsername: to.Username,
				Reason:             protocol.ReasonTimeout,
			}
			actor := ""
			if from != nil {
				ev.CurrentPlayer = from.UserID
				ev.CurrentPlayerUsername = from.Username
				actor = from.UserID
			}
			c.broadcast(r, ev, "")
			c.emit(r, actor, models.ActionTurnTimeout, map[string]interface{}{"next": to.UserID})
		}
		if r.Expired(now) {
			c.logger.Infof("Room %s: completed room expired", code)
			c.broadcast(r, protocol.Event{Type: protocol.EventRoomClosed, Reason: protocol.ReasonExpired}, "")
			c.closeRoom(r)
		}
	}
}

// closeRoom removes a room and every membership pointing at it.
func (c *Coordinator) closeRoom(r *room.Room) {
	for _, p := range r.Players {
		c.dropMembership(p.UserID, r.Code)
	}
	delete(c.rooms, r.Code)
	c.emit(r, "", models.ActionRoomClosed, nil)
}

func (c *Coordinator) connected(userID string) bool {
	for _, conn := range c.conns {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Coordinator) addMembership(userID, code string) {
	set := c.memberships[userID]
	if set == nil {
		set = make(map[string]struct{})
		c.memberships[userID] = set
	}
	set[code] = struct{}{}
}

func (c *Coordinator) dropMembership(userID, code string) {
	set := c.memberships[userID]
	delete(set, code)
	if len(set) == 0 {
		delete(c.memberships, userID)
	}
}

// broadcast stamps the next room sequence number and sends ev to every member except
// the given user.
func (c *Coordinator) broadcast(r *room.Room, ev protocol.Event, except string) {
	ev.RoomCode = r.Code
	ev.Seq = r.NextSeq()
	for _, p := range r.Players {
		if p.UserID == except {
			continue
		}
		if conn := c.conns[p.ConnID]; conn != nil {
			conn.Write(ev)
		}
	}
}

// broadcastSnapshot sends each member a snapshot carrying their own board, under one
// sequence number. decorate, when set, adds type-specific fields for each viewer.
func (c *Coordinator) broadcastSnapshot(r *room.Room, t protocol.EventType, decorate func(*protocol.Event, *room.Player)) {
	r.NextSeq()
	for _, p := range r.Players {
		conn := c.conns[p.ConnID]
		if conn == nil {
			continue
		}
		ev := protocol.SnapshotEvent(t, r.Snapshot(p.UserID))
		if decorate != nil {
			decorate(&ev, p)
		}
		conn.Write(ev)
	}
}

// send delivers a private, room-scoped event carrying the current sequence number.
func (c *Coordinator) send(conn *Connection, r *room.Room, ev protocol.Event) {
	ev.RoomCode = r.Code
	ev.Seq = r.Seq
	conn.Write(ev)
}

// emit appends an entry to the action log. Sinks run on their own goroutine; a full
// buffer drops the entry.
func (c *Coordinator) emit(r *room.Room, actor, actionType string, payload map[string]interface{}) {
	c.emitFor(r, r.GameID, actor, actionType, payload)
}

func (c *Coordinator) emitFor(r *room.Room, gameID uuid.UUID, actor, actionType string, payload map[string]interface{}) {
	if len(c.sinks) == 0 {
		return
	}
	a := models.RoomAction{
		RoomCode:      r.Code,
		GameID:        gameID,
		ActionIndex:   r.NextActionIndex(),
		ActorUserID:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     c.now().UnixMilli(),
	}
	select {
	case c.actions <- a:
	default:
		c.logger.Warnf("Room %s: action buffer full, dropped %s", r.Code, actionType)
	}
}

func (c *Coordinator) drainActions(done chan<- struct{}) {
	defer close(done)
	for a := range c.actions {
		for _, s := range c.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := s.PublishAction(ctx, a); err != nil {
				c.logger.Warnf("Room %s: publish %s: %v", a.RoomCode, a.ActionType, err)
			}
			cancel()
		}
	}
}

// record hands a finished game to the recorder without blocking the loop.
func (c *Coordinator) record(r *room.Room) {
	if c.recorder == nil {
		return
	}
	result := models.GameResult{
		GameID:      r.GameID,
		RoomCode:    r.Code,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		WinnerID:    r.WinnerID,
		TotalCalled: r.Called.Len(),
	}
	for _, p := range r.Players {
		result.Players = append(result.Players, models.PlayerResult{
			UserID:         p.UserID,
			Username:       p.Username,
			IsWinner:       p.UserID == r.WinnerID,
			LinesCompleted: r.LinesFor(p),
			NumbersCalled:  p.Calls,
			Guest:          c.guests[p.UserID],
		})
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.RecordResult(ctx, result); err != nil {
			c.logger.Errorf("Room %s: failed to record game %s: %v", result.RoomCode, result.GameID, err)
			return
		}
		c.logger.Infof("Room %s: recorded game %s", result.RoomCode, result.GameID)
	}()
}

func (c *Coordinator) lookup(code string) (*room.Room, error) {
	r, ok := c.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", room.ErrRoomNotFound, code)
	}
	return r, nil
}

// member returns the room and requires conn's user to be in it.
func (c *Coordinator) member(conn *Connection, code string) (*room.Room, *room.Player, error) {
	r, err := c.lookup(code)
	if err != nil {
		return nil, nil, err
	}
	p := r.Player(conn.UserID)
	if p == nil {
		return nil, nil, room.ErrNotInRoom
	}
	return r, p, nil
}
