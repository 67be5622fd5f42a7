package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
)

func (c *Controller) leaveRoom(ctx context.Context, caller Caller, _ json.RawMessage) ([]Outbound, error) {
	return c.leave(ctx, caller)
}

// leave removes the caller from their room. While the room is waiting they
// simply drop out; once placement has begun leaving forfeits. The game is
// re-read and re-applied when a concurrent write moved it on.
func (c *Controller) leave(ctx context.Context, caller Caller) ([]Outbound, error) {
	code, ok := c.rooms.Get(caller.UserID)
	if !ok {
		return nil, nil
	}
	c.rooms.Delete(caller.UserID)

	out, err := retryConflicts(ctx, func() ([]Outbound, error) {
		return c.leaveOnce(ctx, caller, code)
	})
	if err != nil {
		return nil, fmt.Errorf("leave room %s: %w", code, err)
	}
	return out, nil
}

func (c *Controller) leaveOnce(ctx context.Context, caller Caller, code string) ([]Outbound, error) {
	g, err := c.store.GameByRoomCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}

	switch g.Status {
	case models.StatusWaiting:
		return c.leaveWaiting(ctx, caller, g)
	case models.StatusPlacing, models.StatusPlaying:
		return c.forfeit(ctx, caller, g)
	case models.StatusStarting:
		// The match is being set up; try again once it is playing.
		return nil, ErrConflict
	}
	return nil, nil
}

func (c *Controller) leaveWaiting(ctx context.Context, caller Caller, g *models.Game) ([]Outbound, error) {
	remaining := make([]models.Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.UserID != caller.UserID {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == len(g.Players) {
		return nil, nil
	}

	if len(remaining) == 0 {
		invites, err := c.store.PendingInvitationsForGame(ctx, g.ID)
		if err != nil {
			c.log.WithField("room", g.RoomCode).WithError(err).Warn("failed to load invitations of closing room")
		}
		if err := c.store.DeleteGame(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("delete room: %w", err)
		}
		c.rooms.DeleteRoom(g.RoomCode)
		c.log.WithField("room", g.RoomCode).Info("room closed")

		out := make([]Outbound, 0, len(invites))
		for _, inv := range invites {
			out = append(out, toUser(inv.To, EventInviteCancelled, map[string]interface{}{"roomCode": g.RoomCode}))
		}
		return out, nil
	}

	g.Players = remaining
	hostChanged := g.Host == caller.UserID
	if hostChanged {
		g.Host = remaining[0].UserID
	}
	if err := c.store.SaveGame(ctx, g, models.StatusWaiting); err != nil {
		return nil, fmt.Errorf("remove player: %w", err)
	}

	var out []Outbound
	if hostChanged {
		out = append(out, toRoom(g.RoomCode, EventRoomHostChanged, map[string]interface{}{
			"newHost": PlayerRef{ID: remaining[0].UserID, Username: remaining[0].Username},
		}))
	}
	return append(out, toRoom(g.RoomCode, EventRoomPlayerLeft, map[string]interface{}{
		"userId":      caller.UserID,
		"username":    caller.Username,
		"playerCount": len(g.Players),
	})), nil
}

// forfeit eliminates a player leaving mid-placement or mid-match.
func (c *Controller) forfeit(ctx context.Context, caller Caller, g *models.Game) ([]Outbound, error) {
	from := g.Status
	if !g.Eliminate(caller.UserID) {
		return nil, nil
	}
	leaver := PlayerRef{ID: caller.UserID, Username: caller.Username}
	alive := g.AlivePlayers()

	switch len(alive) {
	case 1:
		winner := alive[0].UserID
		g.Finish(&winner, c.now())
		if err := c.store.SaveGame(ctx, g, from); err != nil {
			return nil, fmt.Errorf("finish game: %w", err)
		}
		c.finished(ctx, g, "opponent_left")
		return []Outbound{
			toRoom(g.RoomCode, EventGameFinished, map[string]interface{}{
				"winner": PlayerRef{ID: alive[0].UserID, Username: alive[0].Username},
				"loser":  leaver,
				"reason": ReasonOpponentLeft,
			}),
			closeRoom(g.RoomCode),
		}, nil
	case 0:
		g.Finish(nil, c.now())
		if err := c.store.SaveGame(ctx, g, from); err != nil {
			return nil, fmt.Errorf("finish game: %w", err)
		}
		c.finished(ctx, g, "abandoned")
		return []Outbound{
			toRoom(g.RoomCode, EventGameFinished, map[string]interface{}{
				"winner": nil,
				"reason": ReasonAllLeft,
			}),
			closeRoom(g.RoomCode),
		}, nil
	}

	if from == models.StatusPlaying {
		if current, ok := g.CurrentTurnPlayer(); ok && current == caller.UserID {
			if next := NextAliveIndex(g.TurnOrder, g.Players, g.CurrentTurnIndex); next >= 0 {
				g.CurrentTurnIndex = next
			}
		}
	}
	if err := c.store.SaveGame(ctx, g, from); err != nil {
		return nil, fmt.Errorf("eliminate player: %w", err)
	}
	c.record(ctx, g.ID, caller.UserID, "player_eliminated", map[string]interface{}{"player": caller.UserID, "reason": "left"})

	var next interface{}
	if from == models.StatusPlaying {
		next = currentPlayerRef(g)
	}
	survivors := make([]map[string]interface{}, len(alive))
	for i, p := range alive {
		survivors[i] = map[string]interface{}{"user": p.UserID, "username": p.Username}
	}
	out := []Outbound{toRoom(g.RoomCode, EventGamePlayerEliminated, map[string]interface{}{
		"userId":       caller.UserID,
		"username":     caller.Username,
		"reason":       ReasonPlayerLeft,
		"nextPlayer":   next,
		"alivePlayers": survivors,
	})}

	// The leaver may have been the last player everyone was waiting on.
	if from == models.StatusPlacing {
		started, err := c.beginMatch(ctx, g.ID)
		switch {
		case err == nil:
			out = append(out, started...)
		case !errors.Is(err, ErrConflict):
			c.log.WithFields(logrus.Fields{"room": g.RoomCode, "user": caller.UserID}).WithError(err).Error("failed to start match after leave")
		}
	}
	return out, nil
}
