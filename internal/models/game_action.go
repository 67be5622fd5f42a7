package models

import (
	"time"

	"github.com/google/uuid"
)

// GameAction is one entry of a match's append-only action log, as queued for
// the historian.
type GameAction struct {
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int64                  `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"` // epoch millis
}

// Time converts the timestamp back to a time.Time.
func (a GameAction) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}
