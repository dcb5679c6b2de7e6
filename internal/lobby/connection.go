// internal/lobby/connection.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bingo/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Connection is one live websocket bound to an authenticated user. The coordinator
// never blocks on it: outbound events go through a buffered channel drained by the
// handler's write pump.
type Connection struct {
	ID       uuid.UUID
	UserID   string
	Username string
	Guest    bool

	OutChan chan protocol.Event
	Cancel  func()

	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger *logrus.Logger
}

// NewConnection creates a connection handle with an outbound buffer of the given size.
func NewConnection(userID, username string, buffer int, cancel func(), logger *logrus.Logger) *Connection {
	if cancel == nil {
		cancel = func() {}
	}
	return &Connection{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		OutChan:  make(chan protocol.Event, buffer),
		Cancel:   cancel,
		shutdown: make(chan struct{}),
		logger:   logger,
	}
}

// ShuttingDown is closed when the coordinator stops while this connection is registered.
func (conn *Connection) ShuttingDown() <-chan struct{} { return conn.shutdown }

func (conn *Connection) signalShutdown() {
	conn.shutdownOnce.Do(func() { close(conn.shutdown) })
}

// Write queues an event without blocking. It reports false and logs when the buffer is full.
func (conn *Connection) Write(ev protocol.Event) bool {
	select {
	case conn.OutChan <- ev:
		return true
	default:
		if conn.logger != nil {
			conn.logger.WithFields(logrus.Fields{
				"user": conn.UserID,
				"conn": conn.ID,
				"room": ev.RoomCode,
			}).Warnf("outbound buffer full, dropped %s event", ev.Type)
		}
		return false
	}
}

// WriteError reports a rejected operation to this connection only.
func (conn *Connection) WriteError(roomCode string, err error) {
	conn.Write(protocol.ErrorEvent(roomCode, err))
}
