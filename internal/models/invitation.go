package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is a request from one user to another to join a waiting room.
type Invitation struct {
	ID           uuid.UUID        `json:"id"`
	From         uuid.UUID        `json:"from"`
	FromUsername string           `json:"fromUsername"`
	To           uuid.UUID        `json:"to"`
	GameID       uuid.UUID        `json:"game"`
	GameType     string           `json:"gameType"`
	RoomCode     string           `json:"roomCode"`
	Status       InvitationStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	ExpiresAt    time.Time        `json:"expiresAt"`
}
