package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	msgRoomNotFound  = "Room not found or game already started"
	msgInviteExpired = "Invite link expired or game already started"
)

type createRoomRequest struct {
	GridSize   int `json:"gridSize"`
	MaxPlayers int `json:"maxPlayers"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type joinInviteRequest struct {
	InviteToken string `json:"inviteToken"`
}

func (c *Controller) createRoom(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req createRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.GridSize == 0 {
		req.GridSize = DefaultGridSize
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = DefaultMaxPlayers
	}
	if req.GridSize < MinGridSize || req.GridSize > MaxGridSize {
		return nil, rejectf("Grid size must be between %d and %d", MinGridSize, MaxGridSize)
	}
	if req.MaxPlayers < MinMaxPlayers || req.MaxPlayers > MaxMaxPlayers {
		return nil, rejectf("Max players must be between %d and %d", MinMaxPlayers, MaxMaxPlayers)
	}

	token, err := GenerateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	g := &models.Game{
		ID:          uuid.New(),
		Host:        caller.UserID,
		GridSize:    req.GridSize,
		MaxPlayers:  req.MaxPlayers,
		Status:      models.StatusWaiting,
		Players:     []models.Player{c.newPlayer(caller)},
		InviteToken: token,
		CreatedAt:   c.now(),
	}
	if err := c.insertWithFreshCode(ctx, g); err != nil {
		return nil, err
	}

	out := c.leavePreviousRoom(ctx, caller, g.RoomCode)
	c.rooms.Set(caller.UserID, g.RoomCode)
	c.record(ctx, g.ID, caller.UserID, "room_created", map[string]interface{}{
		"roomCode":   g.RoomCode,
		"gridSize":   g.GridSize,
		"maxPlayers": g.MaxPlayers,
	})
	c.log.WithFields(logrus.Fields{"room": g.RoomCode, "user": caller.UserID}).Info("room created")

	return append(out, reply(EventRoomJoined, RoomState(g, caller.UserID))), nil
}

// insertWithFreshCode assigns a code no unfinished game holds and inserts g.
func (c *Controller) insertWithFreshCode(ctx context.Context, g *models.Game) error {
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		code, err := GenerateRoomCode()
		if err != nil {
			return fmt.Errorf("generate room code: %w", err)
		}
		inUse, err := c.store.RoomCodeInUse(ctx, code)
		if err != nil {
			return fmt.Errorf("check room code: %w", err)
		}
		if inUse {
			continue
		}
		g.RoomCode = code
		err = c.store.CreateGame(ctx, g)
		if errors.Is(err, ErrRoomCodeTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create game: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no free room code after %d attempts", maxRoomCodeAttempts)
}

func (c *Controller) joinRoom(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req joinRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	if code == "" {
		return nil, reject(msgRoomNotFound)
	}

	g, err := c.store.GameByRoomCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, reject(msgRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	if err := joinRejection(g, caller.UserID, msgRoomNotFound); err != nil {
		return nil, err
	}
	return c.admit(ctx, caller, g, msgRoomNotFound)
}

func (c *Controller) joinInvite(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req joinInviteRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.InviteToken == "" {
		return nil, reject(msgInviteExpired)
	}

	g, err := c.store.GameByInviteToken(ctx, req.InviteToken)
	if errors.Is(err, ErrNotFound) {
		return nil, reject(msgInviteExpired)
	}
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	if g.Status != models.StatusWaiting {
		return nil, reject(msgInviteExpired)
	}

	// Rejoining through the same link replays the room instead of failing.
	if g.IsMember(caller.UserID) {
		out := c.leavePreviousRoom(ctx, caller, g.RoomCode)
		c.rooms.Set(caller.UserID, g.RoomCode)
		return append(out, reply(EventRoomJoined, RoomState(g, caller.UserID))), nil
	}
	if err := joinRejection(g, caller.UserID, msgInviteExpired); err != nil {
		return nil, err
	}

	out, err := c.admit(ctx, caller, g, msgInviteExpired)
	if err != nil {
		return nil, err
	}
	if err := c.store.AcceptInvitations(ctx, g.ID, caller.UserID); err != nil {
		c.log.WithFields(logrus.Fields{"room": g.RoomCode, "user": caller.UserID}).WithError(err).Warn("failed to mark invitations accepted")
	}
	return out, nil
}

// admit appends the caller to g with a conditional write and registers them in the room.
func (c *Controller) admit(ctx context.Context, caller Caller, g *models.Game, goneMsg string) ([]Outbound, error) {
	updated, err := c.store.AddPlayer(ctx, g.ID, c.newPlayer(caller))
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		// Someone else changed the room between our read and write.
		latest, lerr := c.store.GameByID(ctx, g.ID)
		if lerr == nil {
			if rej := joinRejection(latest, caller.UserID, goneMsg); rej != nil {
				return nil, rej
			}
		}
		return nil, reject(goneMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("add player: %w", err)
	}

	out := c.leavePreviousRoom(ctx, caller, updated.RoomCode)
	c.rooms.Set(caller.UserID, updated.RoomCode)
	return append(out,
		reply(EventRoomJoined, RoomState(updated, caller.UserID)),
		toRoomExcept(updated.RoomCode, caller.UserID, EventRoomPlayerJoined, map[string]interface{}{
			"player": map[string]interface{}{
				"user":     caller.UserID,
				"username": caller.Username,
			},
			"playerCount": len(updated.Players),
		}),
	), nil
}

func joinRejection(g *models.Game, userID uuid.UUID, goneMsg string) error {
	switch {
	case g.Status != models.StatusWaiting:
		return reject(goneMsg)
	case g.IsMember(userID):
		return rejectf("Already in this room")
	case len(g.Players) >= g.MaxPlayers:
		return rejectf("Room is full (max %d players)", g.MaxPlayers)
	}
	return nil
}

// leavePreviousRoom runs the leave flow for a room other than keep that the
// caller is still registered in. A user occupies one room at a time.
func (c *Controller) leavePreviousRoom(ctx context.Context, caller Caller, keep string) []Outbound {
	prev, ok := c.rooms.Get(caller.UserID)
	if !ok || prev == keep {
		return nil
	}
	out, err := c.leave(ctx, caller)
	if err != nil && !errors.Is(err, ErrConflict) {
		c.log.WithFields(logrus.Fields{"room": prev, "user": caller.UserID}).WithError(err).Error("failed to leave previous room")
	}
	return out
}
