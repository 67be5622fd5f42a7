package models

import (
	"time"

	"github.com/google/uuid"
)

// Stats is the per-user aggregate updated once per finished game.
type Stats struct {
	UserID        uuid.UUID `json:"user"`
	TotalGames    int       `json:"totalGames"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	CurrentStreak int       `json:"currentStreak"`
	BestStreak    int       `json:"bestStreak"`
	ChipsRevealed int       `json:"chipsRevealed"`
	BombsHit      int       `json:"bombsHit"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GameResult is one player's outcome of a finished game.
type GameResult struct {
	UserID        uuid.UUID
	Won           bool
	ChipsRevealed int
	BombsHit      int
}

// Apply folds a single game result into the aggregate.
func (s *Stats) Apply(r GameResult, at time.Time) {
	s.TotalGames++
	if r.Won {
		s.Wins++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
	} else {
		s.Losses++
		s.CurrentStreak = 0
	}
	s.ChipsRevealed += r.ChipsRevealed
	s.BombsHit += r.BombsHit
	s.UpdatedAt = at
}
