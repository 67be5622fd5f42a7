package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a participant record inside a Game document.
type Player struct {
	UserID   uuid.UUID `json:"user"`
	Username string    `json:"username"`

	// BombsPlaced is true once the player has finished placement (marked ready).
	BombsPlaced bool `json:"bombsPlaced"`

	// BombsHitOnMyBoard counts bombs opponents have detonated on this player's grid.
	BombsHitOnMyBoard int  `json:"bombsHitOnMyBoard"`
	IsEliminated      bool `json:"isEliminated"`

	JoinedAt time.Time `json:"joinedAt"`
}
