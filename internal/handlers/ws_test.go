// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bingo/internal/auth"
	"github.com/jason-s-yu/bingo/internal/config"
	"github.com/jason-s-yu/bingo/internal/lobby"
	"github.com/jason-s-yu/bingo/internal/protocol"
	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsServer struct {
	url    string
	base   string
	issuer *auth.Issuer
	coord  *lobby.Coordinator
	stop   func()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newWSServer(t *testing.T, cfg config.ConnConfig) *wsServer {
	t.Helper()
	logger := quietLogger()
	issuer, err := auth.NewIssuer(time.Hour)
	require.NoError(t, err)

	coord := lobby.NewCoordinator(logger, room.DefaultPolicy(), lobby.WithSweepInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /ws", RoomWSHandler(logger, issuer, coord, cfg))
	mux.Handle("GET /rooms/{code}", RoomHandler(logger, coord))
	srv := httptest.NewServer(mux)

	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(func() {
		srv.Close()
		stop()
	})
	return &wsServer{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		base:   srv.URL,
		issuer: issuer,
		coord:  coord,
		stop:   stop,
	}
}

func defaultConn() config.ConnConfig {
	return config.Default().Conn
}

func (s *wsServer) dial(t *testing.T, id *auth.Identity) *websocket.Conn {
	t.Helper()
	opts := &websocket.DialOptions{Subprotocols: []string{Subprotocol}}
	if id != nil {
		token, err := s.issuer.CreateJWT(*id)
		require.NoError(t, err)
		opts.HTTPHeader = http.Header{"Cookie": []string{auth.CookieName + "=" + token}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, s.url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil reads events until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ protocol.EventType) protocol.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var ev protocol.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestRoomOverWebsocket(t *testing.T) {
	s := newWSServer(t, defaultConn())
	host := s.dial(t, &auth.Identity{UserID: "host-1", Username: "Hana"})
	guest := s.dial(t, &auth.Identity{UserID: "guest-1", Username: "Gus"})

	send(t, host, map[string]string{"type": "createRoom"})
	created := readUntil(t, host, protocol.EventRoomCreated)
	require.True(t, room.ValidCode(created.RoomCode))
	assert.Equal(t, "host-1", created.HostID)

	send(t, guest, map[string]string{"type": "joinRoom", "roomCode": strings.ToLower(created.RoomCode)})
	joined := readUntil(t, guest, protocol.EventRoomJoined)
	assert.Len(t, joined.Players, 2)

	ev := readUntil(t, host, protocol.EventPlayerJoined)
	assert.Equal(t, "guest-1", ev.UserID)
	readUntil(t, host, protocol.EventGameReady)

	// the guest cannot start the game
	send(t, guest, map[string]string{"type": "startGame", "roomCode": created.RoomCode})
	errEv := readUntil(t, guest, protocol.EventError)
	assert.Equal(t, room.KindNotHost, errEv.Kind)

	send(t, host, map[string]string{"type": "startGame", "roomCode": created.RoomCode})
	board := readUntil(t, host, protocol.EventBoardAssigned)
	require.NotNil(t, board.Board)

	resp, err := http.Get(s.base + "/rooms/" + created.RoomCode)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap room.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, room.StatusActive, snap.Status)
	assert.Nil(t, snap.Board)
}

func TestGuestConnection(t *testing.T) {
	s := newWSServer(t, defaultConn())
	c := s.dial(t, nil)

	send(t, c, map[string]string{"type": "createRoom"})
	created := readUntil(t, c, protocol.EventRoomCreated)
	require.Len(t, created.Players, 1)
	assert.True(t, strings.HasPrefix(created.Players[0].Username, "Guest-"))
}

func TestRejectsWithoutSubprotocol(t *testing.T) {
	s := newWSServer(t, defaultConn())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, s.url, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestRejectsBadToken(t *testing.T) {
	cfg := defaultConn()
	cfg.AllowGuests = false
	s := newWSServer(t, cfg)

	for name, header := range map[string]http.Header{
		"no token":     nil,
		"forged token": {"Authorization": []string{"Bearer not.a.jwt"}},
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
				Subprotocols: []string{Subprotocol},
				HTTPHeader:   header,
			})
			require.NoError(t, err)
			defer c.CloseNow()

			_, _, err = c.Read(ctx)
			assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))
		})
	}
}

func TestRateLimitAndMalformedMessages(t *testing.T) {
	cfg := defaultConn()
	cfg.MessagesPerSecond = 0.001
	cfg.Burst = 2
	s := newWSServer(t, cfg)
	c := s.dial(t, &auth.Identity{UserID: "u1", Username: "Ann"})

	send(t, c, map[string]string{"type": "dance"})
	assert.Equal(t, room.KindInvalidMessage, readUntil(t, c, protocol.EventError).Kind)

	send(t, c, map[string]string{"type": "createRoom"})
	readUntil(t, c, protocol.EventRoomCreated)

	send(t, c, map[string]string{"type": "createRoom"})
	assert.Equal(t, room.KindRateLimited, readUntil(t, c, protocol.EventError).Kind)
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	s := newWSServer(t, defaultConn())
	host := s.dial(t, &auth.Identity{UserID: "host-1", Username: "Hana"})
	guest := s.dial(t, &auth.Identity{UserID: "guest-1", Username: "Gus"})

	send(t, host, map[string]string{"type": "createRoom"})
	code := readUntil(t, host, protocol.EventRoomCreated).RoomCode
	send(t, guest, map[string]string{"type": "joinRoom", "roomCode": code})
	readUntil(t, host, protocol.EventPlayerJoined)

	guest.Close(websocket.StatusNormalClosure, "bye")

	left := readUntil(t, host, protocol.EventPlayerLeft)
	assert.Equal(t, "guest-1", left.UserID)
	assert.Equal(t, protocol.ReasonDisconnected, left.Reason)
	assert.Len(t, left.Players, 1)
}

func TestShutdownClosesOpenSockets(t *testing.T) {
	s := newWSServer(t, defaultConn())
	c := s.dial(t, &auth.Identity{UserID: "u1", Username: "Ann"})
	send(t, c, map[string]string{"type": "createRoom"})
	readUntil(t, c, protocol.EventRoomCreated)

	s.stop()

	// the client is idle; the server must close without waiting for another frame
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(ServerShuttingDown), websocket.CloseStatus(err))
}
