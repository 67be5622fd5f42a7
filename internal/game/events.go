// internal/game/events.go
package game

import "github.com/google/uuid"

// Client to server events.
const (
	EventRoomCreate       = "room:create"
	EventRoomJoin         = "room:join"
	EventRoomJoinInvite   = "room:join-invite"
	EventRoomLeave        = "room:leave"
	EventGameStartPlacing = "game:start-placing"
	EventGamePlaceBomb    = "game:place-bomb"
	EventGameReady        = "game:ready"
	EventGameSelectChip   = "game:select-chip"
	EventInviteSend       = "invite:send"
	EventPing             = "ping"
)

// Server to client events.
const (
	EventRoomJoined           = "room:joined"
	EventRoomPlayerJoined     = "room:player-joined"
	EventRoomPlayerLeft       = "room:player-left"
	EventRoomHostChanged      = "room:host-changed"
	EventGamePlacingStarted   = "game:placing-started"
	EventGameBombPlaced       = "game:bomb-placed"
	EventGamePlayerReady      = "game:player-ready"
	EventGameStarted          = "game:started"
	EventGameChipRevealed     = "game:chip-revealed"
	EventGamePlayerEliminated = "game:player-eliminated"
	EventGameFinished         = "game:finished"
	EventInviteReceived       = "invite:received"
	EventInviteSent           = "invite:sent"
	EventInviteCancelled      = "invite:cancelled"
	EventError                = "error"
	EventPong                 = "pong"
)

// GameTypeBombChip is the game type carried on invitations.
const GameTypeBombChip = "bombchip"

// Event is a single frame on the wire.
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ErrorEvent builds the caller-scoped error frame.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Payload: map[string]interface{}{"message": message}}
}

// Outbound is an event produced by a handler. It goes back on the
// originating connection (Reply), to every connection of one user (To), or
// to everyone registered in a room except one member. A Close entry carries
// no event; it clears the room from the registry once the entries before it
// have been delivered.
type Outbound struct {
	Reply  bool
	To     uuid.UUID
	Room   string
	Except uuid.UUID
	Close  bool
	Event  Event
}

func reply(typ string, payload map[string]interface{}) Outbound {
	return Outbound{Reply: true, Event: Event{Type: typ, Payload: payload}}
}

func toUser(userID uuid.UUID, typ string, payload map[string]interface{}) Outbound {
	return Outbound{To: userID, Event: Event{Type: typ, Payload: payload}}
}

func toRoom(roomCode string, typ string, payload map[string]interface{}) Outbound {
	return Outbound{Room: roomCode, Event: Event{Type: typ, Payload: payload}}
}

func closeRoom(roomCode string) Outbound {
	return Outbound{Room: roomCode, Close: true}
}

func toRoomExcept(roomCode string, except uuid.UUID, typ string, payload map[string]interface{}) Outbound {
	return Outbound{Room: roomCode, Except: except, Event: Event{Type: typ, Payload: payload}}
}
