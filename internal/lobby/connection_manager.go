// internal/lobby/connection_manager.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/game"
)

// ConnectionManager tracks every live connection per user so events can be
// addressed to a user directly instead of scanning all sockets.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[uuid.UUID]*Connection // userID -> connID -> conn
	total int
}

// NewConnectionManager creates and returns a new ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[uuid.UUID]map[uuid.UUID]*Connection)}
}

// Add registers conn and reports whether it is the user's first connection.
func (m *ConnectionManager) Add(conn *Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[conn.UserID]
	if !ok {
		set = make(map[uuid.UUID]*Connection)
		m.conns[conn.UserID] = set
	}
	if _, dup := set[conn.ID]; !dup {
		m.total++
	}
	set[conn.ID] = conn
	return len(set) == 1
}

// Remove unregisters conn and reports whether the user has no connection left.
func (m *ConnectionManager) Remove(conn *Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[conn.UserID]
	if !ok {
		return true
	}
	if _, present := set[conn.ID]; present {
		delete(set, conn.ID)
		m.total--
	}
	if len(set) == 0 {
		delete(m.conns, conn.UserID)
		return true
	}
	return false
}

// SendToUser queues ev on every connection of userID.
func (m *ConnectionManager) SendToUser(userID uuid.UUID, ev game.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns[userID] {
		conn.Write(ev)
	}
}

// Count returns the number of live connections of userID.
func (m *ConnectionManager) Count(userID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userID])
}

// Stats returns the number of connected users and open connections.
func (m *ConnectionManager) Stats() (users, conns int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns), m.total
}

// CloseAll cancels every connection. Used on shutdown.
func (m *ConnectionManager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, set := range m.conns {
		for _, conn := range set {
			if conn.Cancel != nil {
				conn.Cancel()
			}
		}
	}
}
