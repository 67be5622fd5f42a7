package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

type placeBombRequest struct {
	Index *int `json:"index"`
}

func (c *Controller) startPlacing(ctx context.Context, caller Caller, _ json.RawMessage) ([]Outbound, error) {
	// A join landing between the read and the save forces a re-read, so
	// every player who made it in gets a grid.
	return retryConflicts(ctx, func() ([]Outbound, error) {
		return c.startPlacingOnce(ctx, caller)
	})
}

func (c *Controller) startPlacingOnce(ctx context.Context, caller Caller) ([]Outbound, error) {
	code, g, inRoom, err := c.roomGame(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !inRoom {
		return nil, rejectf("Not in a room")
	}
	if g == nil || g.Status != models.StatusWaiting {
		return nil, rejectf("Game not found")
	}
	if g.Host != caller.UserID {
		return nil, rejectf("Only host can start the game")
	}
	if len(g.Players) < 2 {
		return nil, rejectf("Need at least 2 players")
	}

	g.PlayerGrids = make([]models.PlayerGrid, len(g.Players))
	for i, p := range g.Players {
		g.PlayerGrids[i] = models.PlayerGrid{PlayerID: p.UserID, Grid: CreateEmptyGrid(g.GridSize)}
	}
	now := c.now()
	g.Status = models.StatusPlacing
	g.PlacingStartedAt = &now
	if err := c.store.SaveGame(ctx, g, models.StatusWaiting); err != nil {
		return nil, fmt.Errorf("start placing: %w", err)
	}
	c.record(ctx, g.ID, caller.UserID, "placing_started", map[string]interface{}{"players": len(g.Players)})

	players := make([]map[string]interface{}, len(g.Players))
	for i, p := range g.Players {
		players[i] = map[string]interface{}{
			"user":        p.UserID,
			"username":    p.Username,
			"bombsPlaced": p.BombsPlaced,
		}
	}
	return []Outbound{toRoom(code, EventGamePlacingStarted, map[string]interface{}{
		"gridSize":  g.GridSize,
		"bombCount": BombsRequired(g.GridSize),
		"players":   players,
	})}, nil
}

func (c *Controller) placeBomb(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req placeBombRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	_, g, inRoom, err := c.roomGame(ctx, caller.UserID)
	if err != nil || !inRoom {
		return nil, err
	}
	grid, err := placementGrid(g, caller.UserID, "You have already finished placing bombs")
	if err != nil {
		return nil, err
	}
	if req.Index == nil {
		return nil, rejectf("Invalid position")
	}

	required := BombsRequired(g.GridSize)
	hasBomb, err := PlaceBomb(grid, *req.Index, required)
	switch {
	case errors.Is(err, ErrInvalidPosition):
		return nil, rejectf("Invalid position")
	case errors.Is(err, ErrBombLimit):
		return nil, rejectf("You can only place %d bombs", required)
	}
	if err := c.store.SaveGrid(ctx, g.ID, caller.UserID, grid); err != nil {
		return nil, fmt.Errorf("save grid: %w", err)
	}

	return []Outbound{reply(EventGameBombPlaced, map[string]interface{}{
		"index":         *req.Index,
		"hasBomb":       hasBomb,
		"bombsPlaced":   grid.BombCount(),
		"bombsRequired": required,
	})}, nil
}

func (c *Controller) markReady(ctx context.Context, caller Caller, _ json.RawMessage) ([]Outbound, error) {
	code, g, inRoom, err := c.roomGame(ctx, caller.UserID)
	if err != nil || !inRoom {
		return nil, err
	}
	grid, err := placementGrid(g, caller.UserID, "You are already ready")
	if err != nil {
		return nil, err
	}
	required := BombsRequired(g.GridSize)
	if placed := grid.BombCount(); placed != required {
		return nil, rejectf("You must place exactly %d bombs (placed: %d)", required, placed)
	}

	updated, err := c.store.MarkReady(ctx, g.ID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("mark ready: %w", err)
	}
	out := []Outbound{toRoom(code, EventGamePlayerReady, map[string]interface{}{
		"userId":   caller.UserID,
		"username": caller.Username,
	})}

	started, err := c.beginMatch(ctx, updated.ID)
	if errors.Is(err, ErrConflict) {
		// Not everyone is ready yet, or another ready event won the transition.
		return out, nil
	}
	if err != nil {
		return out, err
	}
	return append(out, started...), nil
}

// placementGrid validates that userID may still edit their grid in g.
func placementGrid(g *models.Game, userID uuid.UUID, readyMsg string) (models.Grid, error) {
	if g == nil || g.Status != models.StatusPlacing {
		return nil, rejectf("Game not in placement phase")
	}
	p, _ := g.Player(userID)
	if p == nil {
		return nil, rejectf("Player not found")
	}
	if p.BombsPlaced {
		return nil, reject(readyMsg)
	}
	grid, _ := g.GridOf(userID)
	if grid == nil {
		return nil, rejectf("Grid not found")
	}
	return grid, nil
}

// beginMatch attempts the placing to starting transition. Only the caller
// whose conditional write succeeds fixes the turn order and starts play; every
// other caller gets ErrConflict.
func (c *Controller) beginMatch(ctx context.Context, gameID uuid.UUID) ([]Outbound, error) {
	g, err := c.store.BeginMatch(ctx, gameID)
	if err != nil {
		return nil, err
	}

	g.TurnOrder = ShuffledTurnOrder(g.Players, c.shuffle)
	g.CurrentTurnIndex = FirstAliveIndex(g.TurnOrder, g.Players)
	if g.CurrentTurnIndex < 0 {
		g.CurrentTurnIndex = 0
	}
	now := c.now()
	g.StartedAt = &now
	g.Status = models.StatusPlaying
	if err := c.store.SaveGame(ctx, g, models.StatusStarting); err != nil {
		return nil, fmt.Errorf("start match: %w", err)
	}
	c.metrics.GameStarted()
	c.record(ctx, g.ID, uuid.Nil, "match_started", map[string]interface{}{"turnOrder": g.TurnOrder})
	c.log.WithField("room", g.RoomCode).Info("match started")

	out := make([]Outbound, 0, len(g.Players))
	for _, p := range g.Players {
		if p.IsEliminated {
			continue
		}
		out = append(out, toUser(p.UserID, EventGameStarted, PersonalizedStart(g, p.UserID)))
	}
	return out, nil
}
