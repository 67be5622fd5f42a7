// internal/lobby/registry.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

// RoomRegistry maps each connected user to the room code they occupy and
// keeps the reverse index for room broadcasts. It is process local and never
// persisted; entries come back as users reconnect and rejoin.
type RoomRegistry struct {
	mu      sync.RWMutex
	byUser  map[uuid.UUID]string
	members map[string]map[uuid.UUID]struct{}
}

// NewRoomRegistry initializes an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		byUser:  make(map[uuid.UUID]string),
		members: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Set records that userID occupies roomCode, replacing any earlier room.
func (r *RoomRegistry) Set(userID uuid.UUID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlink(userID)
	r.byUser[userID] = roomCode
	set, ok := r.members[roomCode]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.members[roomCode] = set
	}
	set[userID] = struct{}{}
}

func (r *RoomRegistry) Get(userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.byUser[userID]
	return code, ok
}

func (r *RoomRegistry) Delete(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlink(userID)
}

// Members returns the users currently registered in roomCode.
func (r *RoomRegistry) Members(roomCode string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[roomCode]
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// DeleteRoom drops every entry pointing at roomCode.
func (r *RoomRegistry) DeleteRoom(roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.members[roomCode] {
		delete(r.byUser, id)
	}
	delete(r.members, roomCode)
}

// Rooms returns the number of rooms with at least one registered member.
func (r *RoomRegistry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Reset clears the registry. Called on shutdown.
func (r *RoomRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[uuid.UUID]string)
	r.members = make(map[string]map[uuid.UUID]struct{})
}

// unlink removes userID from both indexes. Caller holds mu.
func (r *RoomRegistry) unlink(userID uuid.UUID) {
	code, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(r.byUser, userID)
	if set := r.members[code]; set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.members, code)
		}
	}
}
