package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneDoesNotShareState(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := &Game{
		ID:        uuid.New(),
		Players:   []Player{{UserID: a}, {UserID: b}},
		TurnOrder: []uuid.UUID{b, a},
		PlayerGrids: []PlayerGrid{
			{PlayerID: a, Grid: Grid{{Index: 0}, {Index: 1}}},
		},
	}

	c := g.Clone()
	c.Players[0].IsEliminated = true
	c.PlayerGrids[0].Grid[1].HasBomb = true
	c.TurnOrder[0] = a

	assert.False(t, g.Players[0].IsEliminated)
	assert.False(t, g.PlayerGrids[0].Grid[1].HasBomb)
	assert.Equal(t, b, g.TurnOrder[0])
}

func TestEliminateAndFinish(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := &Game{Players: []Player{{UserID: a}, {UserID: b}}, Status: StatusPlaying}

	require.True(t, g.Eliminate(a))
	assert.False(t, g.Eliminate(a), "second elimination is a no-op")
	assert.Equal(t, []uuid.UUID{a}, g.Losers)

	alive := g.AlivePlayers()
	require.Len(t, alive, 1)
	assert.Equal(t, b, alive[0].UserID)

	now := time.Now()
	g.Finish(&b, now)
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, b, *g.Winner)
	assert.Equal(t, now, *g.FinishedAt)
}
