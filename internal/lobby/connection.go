// internal/lobby/connection.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/sirupsen/logrus"
)

// Connection is a single websocket of a user. Outgoing frames are queued on
// OutChan and drained by the handler's write pump.
type Connection struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	Cancel   context.CancelFunc
	OutChan  chan game.Event

	log *logrus.Logger
}

// NewConnection allocates a connection with a buffered outbound queue.
func NewConnection(userID uuid.UUID, username string, cancel context.CancelFunc, buffer int, logger *logrus.Logger) *Connection {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Connection{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		Cancel:   cancel,
		OutChan:  make(chan game.Event, buffer),
		log:      logger,
	}
}

// Write pushes an event onto OutChan without blocking. A full queue drops the
// event and logs it.
func (c *Connection) Write(ev game.Event) {
	select {
	case c.OutChan <- ev:
	default:
		c.log.WithFields(logrus.Fields{"user": c.UserID, "conn": c.ID, "event": ev.Type}).Warn("outbound queue full, dropped event")
	}
}

// WriteError is a convenience to send an error frame.
func (c *Connection) WriteError(msg string) {
	c.Write(game.ErrorEvent(msg))
}
