// internal/feed/nats.go
// Package feed mirrors the room action log onto NATS subjects so other services can
// follow rooms live.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "bingo.rooms"

// Connect dials url and keeps reconnecting forever.
func Connect(url string, logger *logrus.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("bingo-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns <prefix>.<ROOM>.<action type>.
func Subject(prefix, roomCode, actionType string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return strings.Join([]string{prefix, roomCode, actionType}, ".")
}

// Publisher sends each room action as JSON on its room subject.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: prefix}
}

// PublishAction publishes the action. NATS buffers while reconnecting, so this only
// fails once the connection is closed or the buffer is full.
func (p *Publisher) PublishAction(_ context.Context, action models.RoomAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal room action: %w", err)
	}
	subject := Subject(p.prefix, action.RoomCode, action.ActionType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
