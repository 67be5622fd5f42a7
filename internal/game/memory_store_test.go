package game

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placingGame(players ...uuid.UUID) *models.Game {
	g := &models.Game{
		ID:         uuid.New(),
		RoomCode:   "ABC234",
		GridSize:   3,
		MaxPlayers: 4,
		Status:     models.StatusPlacing,
		CreatedAt:  time.Now(),
	}
	for _, id := range players {
		g.Players = append(g.Players, models.Player{UserID: id})
		g.PlayerGrids = append(g.PlayerGrids, models.PlayerGrid{PlayerID: id, Grid: CreateEmptyGrid(3)})
	}
	return g
}

func TestMemoryStoreRoomCodeUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	g := placingGame(uuid.New())
	require.NoError(t, s.CreateGame(ctx, g))

	dup := placingGame(uuid.New())
	assert.ErrorIs(t, s.CreateGame(ctx, dup), ErrRoomCodeTaken)

	g.Finish(nil, time.Now())
	require.NoError(t, s.SaveGame(ctx, g, models.StatusPlacing))
	inUse, err := s.RoomCodeInUse(ctx, g.RoomCode)
	require.NoError(t, err)
	assert.False(t, inUse, "finished games release their code")
	assert.NoError(t, s.CreateGame(ctx, dup))
}

func TestMemoryStoreBeginMatchIsConditional(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	s := NewMemoryStore()
	g := placingGame(a, b)
	require.NoError(t, s.CreateGame(ctx, g))

	_, err := s.BeginMatch(ctx, g.ID)
	assert.ErrorIs(t, err, ErrConflict, "nobody is ready")

	_, err = s.MarkReady(ctx, g.ID, a)
	require.NoError(t, err)
	_, err = s.MarkReady(ctx, g.ID, a)
	assert.ErrorIs(t, err, ErrConflict, "already ready")

	_, err = s.MarkReady(ctx, g.ID, b)
	require.NoError(t, err)

	won, err := s.BeginMatch(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, won.Status)

	_, err = s.BeginMatch(ctx, g.ID)
	assert.ErrorIs(t, err, ErrConflict, "only one caller wins")
}

func TestMemoryStoreSaveGameGuardsStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	g := placingGame(uuid.New(), uuid.New())
	require.NoError(t, s.CreateGame(ctx, g))

	g.Status = models.StatusPlaying
	assert.ErrorIs(t, s.SaveGame(ctx, g, models.StatusWaiting), ErrConflict)
	require.NoError(t, s.SaveGame(ctx, g, models.StatusPlacing))

	// Mutating the caller's copy does not leak into the store.
	g.Players[0].IsEliminated = true
	stored, err := s.GameByID(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, stored.Players[0].IsEliminated)
	assert.Equal(t, models.StatusPlaying, stored.Status)
}

func TestMemoryStoreInvitationExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	to := uuid.New()
	inv := &models.Invitation{
		ID:        uuid.New(),
		From:      uuid.New(),
		To:        to,
		GameID:    uuid.New(),
		Status:    models.InvitationPending,
		CreatedAt: now.Add(-40 * time.Minute),
		ExpiresAt: now.Add(-10 * time.Minute),
	}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	live, err := s.PendingInvitationsFor(ctx, to, now)
	require.NoError(t, err)
	assert.Empty(t, live)

	require.NoError(t, s.ExpireInvitations(ctx, to, now))
	has, err := s.HasPendingInvitation(ctx, inv.From, to, inv.GameID)
	require.NoError(t, err)
	assert.False(t, has)

	n, err := s.DeleteStaleInvitations(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "expired invitations are no longer pending")
}

func TestMemoryStoreSaveGameRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	s := NewMemoryStore()
	g := placingGame(a, b)
	require.NoError(t, s.CreateGame(ctx, g))

	stale, err := s.GameByID(ctx, g.ID)
	require.NoError(t, err)
	_, err = s.MarkReady(ctx, g.ID, b)
	require.NoError(t, err)

	stale.Eliminate(a)
	assert.ErrorIs(t, s.SaveGame(ctx, stale, models.StatusPlacing), ErrConflict, "status matches but the read is stale")

	fresh, err := s.GameByID(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, fresh.Eliminate(a))
	read := fresh.Revision
	require.NoError(t, s.SaveGame(ctx, fresh, models.StatusPlacing))
	assert.Equal(t, read+1, fresh.Revision)

	stored, err := s.GameByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.Players[1].BombsPlaced, "ready flag survives the save")
	assert.True(t, stored.Players[0].IsEliminated)
	assert.Equal(t, fresh.Revision, stored.Revision)
}
