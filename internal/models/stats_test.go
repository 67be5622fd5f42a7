package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatsApplyTracksStreaks(t *testing.T) {
	s := Stats{UserID: uuid.New()}
	now := time.Now()

	s.Apply(GameResult{Won: true, ChipsRevealed: 3, BombsHit: 1}, now)
	s.Apply(GameResult{Won: true, ChipsRevealed: 2}, now)
	s.Apply(GameResult{Won: false, BombsHit: 2}, now)
	s.Apply(GameResult{Won: true}, now)

	assert.Equal(t, 4, s.TotalGames)
	assert.Equal(t, 3, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.BestStreak)
	assert.Equal(t, 5, s.ChipsRevealed)
	assert.Equal(t, 3, s.BombsHit)
	assert.Equal(t, now, s.UpdatedAt)
}
