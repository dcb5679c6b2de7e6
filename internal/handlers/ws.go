// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bingo/internal/auth"
	"github.com/jason-s-yu/bingo/internal/config"
	"github.com/jason-s-yu/bingo/internal/lobby"
	"github.com/jason-s-yu/bingo/internal/middleware"
	"github.com/jason-s-yu/bingo/internal/protocol"
	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "bingo"

// RoomWSHandler upgrades the request and binds the socket to the coordinator. All
// room traffic for the user flows over this one connection.
func RoomWSHandler(logger *logrus.Logger, issuer *auth.Issuer, coord *lobby.Coordinator, cfg config.ConnConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the bingo subprotocol")
			return
		}

		id, err := resolveIdentity(r, issuer, cfg.AllowGuests)
		if err != nil {
			logger.Warnf("websocket auth failed from %s: %v", r.RemoteAddr, err)
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := lobby.NewConnection(id.UserID, id.Username, cfg.OutBuffer, cancel, logger)
		conn.Guest = id.Guest

		if err := coord.Connect(ctx, conn); err != nil {
			logger.Warnf("failed to register connection for %s: %v", id.UserID, err)
			c.Close(ServerShuttingDown, "server unavailable")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, logger)
		go func() {
			select {
			case <-conn.ShuttingDown():
				c.Close(ServerShuttingDown, "server shutting down")
			case <-ctx.Done():
			}
		}()
		limiter := rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst)
		readErr := readPump(ctx, c, coord, conn, limiter, logger)
		cancel()

		// the request context is gone by now
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := coord.Disconnect(dctx, conn); err != nil && !errors.Is(err, lobby.ErrStopped) {
			logger.Warnf("failed to unregister connection for %s: %v", id.UserID, err)
		}
		dcancel()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)

		if errors.Is(readErr, lobby.ErrStopped) {
			c.Close(ServerShuttingDown, "server shutting down")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// resolveIdentity authenticates the request token, falling back to a fresh guest
// when no token is presented and guests are allowed.
func resolveIdentity(r *http.Request, issuer *auth.Issuer, allowGuests bool) (auth.Identity, error) {
	token := tokenFromRequest(r)
	if token == "" {
		if !allowGuests {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		return auth.NewGuest(), nil
	}
	id, err := issuer.AuthenticateJWT(token)
	if err != nil {
		return auth.Identity{}, err
	}
	if id.Username == "" {
		id.Username = "Player-" + id.UserID[:min(4, len(id.UserID))]
	}
	return id, nil
}

// readPump decodes client commands and hands them to the coordinator until the socket
// closes. Rejected commands are answered with error events and do not end the loop.
func readPump(ctx context.Context, c *websocket.Conn, coord *lobby.Coordinator, conn *lobby.Connection, limiter *rate.Limiter, logger *logrus.Logger) error {
	log := logger.WithField("user", conn.UserID)
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			conn.WriteError("", room.ErrInvalidMessage)
			continue
		}
		if !limiter.Allow() {
			conn.WriteError("", room.ErrRateLimited)
			continue
		}

		cmd, err := protocol.Decode(msg)
		if err != nil {
			log.Debugf("rejected message: %v", err)
			conn.WriteError("", err)
			continue
		}
		if err := coord.Handle(ctx, conn, cmd); err != nil {
			if errors.Is(err, lobby.ErrStopped) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Debugf("%s rejected: %v", cmd.Type(), err)
		}
	}
}

// writePump drains the connection's outbound queue onto the socket and keeps it alive
// with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("failed to marshal %s event for %s: %v", ev.Type, conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for %s: %v", conn.UserID, err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping to %s failed, assuming disconnect: %v", conn.UserID, err)
				conn.Cancel()
				return
			}
		}
	}
}
