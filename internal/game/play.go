package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

type selectChipRequest struct {
	Index          *int   `json:"index"`
	TargetPlayerID string `json:"targetPlayerId"`
}

func (c *Controller) selectChip(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req selectChipRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	return retryConflicts(ctx, func() ([]Outbound, error) {
		return c.revealOnce(ctx, caller, req)
	})
}

// revealOnce applies one reveal to a fresh read of the game. A forfeit saved
// in the meantime fails the write with ErrConflict.
func (c *Controller) revealOnce(ctx context.Context, caller Caller, req selectChipRequest) ([]Outbound, error) {
	code, g, inRoom, err := c.roomGame(ctx, caller.UserID)
	if err != nil || !inRoom {
		return nil, err
	}
	if g == nil || g.Status != models.StatusPlaying {
		return nil, rejectf("Game not found")
	}
	if current, ok := g.CurrentTurnPlayer(); !ok || current != caller.UserID {
		return nil, rejectf("Not your turn")
	}

	targetID, err := uuid.Parse(req.TargetPlayerID)
	if err != nil {
		return nil, rejectf("Target player not found")
	}
	if targetID == caller.UserID {
		return nil, rejectf("Cannot attack your own board")
	}
	target, _ := g.Player(targetID)
	if target == nil {
		return nil, rejectf("Target player not found")
	}
	if target.IsEliminated {
		return nil, rejectf("Target player is already eliminated")
	}
	grid, _ := g.GridOf(targetID)
	if grid == nil {
		return nil, rejectf("Target grid not found")
	}
	if req.Index == nil {
		return nil, rejectf("Invalid chip selection")
	}

	hasBomb, err := RevealChip(grid, *req.Index, caller.UserID)
	switch {
	case errors.Is(err, ErrInvalidPosition):
		return nil, rejectf("Invalid chip selection")
	case errors.Is(err, ErrChipRevealed):
		return nil, rejectf("Chip already revealed")
	}

	bombTotal := BombsRequired(g.GridSize)
	result := map[string]interface{}{
		"index":          *req.Index,
		"hasBomb":        hasBomb,
		"revealedBy":     PlayerRef{ID: caller.UserID, Username: caller.Username},
		"targetBoard":    targetID,
		"targetUsername": target.Username,
	}

	eliminated, gameOver := false, false
	if hasBomb {
		target.BombsHitOnMyBoard++
		result["bombsHit"] = target.BombsHitOnMyBoard
		result["bombsTotal"] = bombTotal

		if target.BombsHitOnMyBoard >= bombTotal {
			g.Eliminate(targetID)
			eliminated = true
			result["playerEliminated"] = PlayerRef{ID: targetID, Username: target.Username}

			if survivor, ok := LastStanding(g.Players); ok {
				winner := survivor.UserID
				g.Finish(&winner, c.now())
				gameOver = true
				result["gameOver"] = true
				result["winner"] = PlayerRef{ID: survivor.UserID, Username: survivor.Username}
				result["reason"] = ReasonLastStanding
			}
		}
	}
	if !gameOver {
		if next := NextAliveIndex(g.TurnOrder, g.Players, g.CurrentTurnIndex); next >= 0 {
			g.CurrentTurnIndex = next
			result["nextPlayer"] = currentPlayerRef(g)
		}
	}

	if err := c.store.SaveGame(ctx, g, models.StatusPlaying); err != nil {
		return nil, fmt.Errorf("save reveal: %w", err)
	}

	c.record(ctx, g.ID, caller.UserID, "chip_revealed", map[string]interface{}{
		"target":  targetID,
		"index":   *req.Index,
		"hasBomb": hasBomb,
	})
	if eliminated {
		c.record(ctx, g.ID, caller.UserID, "player_eliminated", map[string]interface{}{"player": targetID})
	}
	out := []Outbound{toRoom(code, EventGameChipRevealed, result)}
	if gameOver {
		c.finished(ctx, g, "last_standing")
		out = append(out, closeRoom(code))
	}
	return out, nil
}
