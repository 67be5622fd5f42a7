package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
)

type sendInviteRequest struct {
	FriendID string `json:"friendId"`
}

func (c *Controller) sendInvite(ctx context.Context, caller Caller, raw json.RawMessage) ([]Outbound, error) {
	var req sendInviteRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	friendID, err := uuid.Parse(req.FriendID)
	if err != nil {
		return nil, rejectf("Invalid friend id")
	}
	if friendID == caller.UserID {
		return nil, rejectf("Cannot invite yourself")
	}

	_, g, inRoom, err := c.roomGame(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !inRoom {
		return nil, rejectf("Not in a room")
	}
	if g == nil || g.Status != models.StatusWaiting {
		return nil, rejectf("Game not found")
	}

	exists, err := c.store.HasPendingInvitation(ctx, caller.UserID, friendID, g.ID)
	if err != nil {
		return nil, fmt.Errorf("check invitation: %w", err)
	}
	if exists {
		return nil, rejectf("Invite already sent")
	}

	now := c.now()
	inv := &models.Invitation{
		ID:           uuid.New(),
		From:         caller.UserID,
		FromUsername: caller.Username,
		To:           friendID,
		GameID:       g.ID,
		GameType:     GameTypeBombChip,
		RoomCode:     g.RoomCode,
		Status:       models.InvitationPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.inviteTTL),
	}
	if err := c.store.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	return []Outbound{
		toUser(friendID, EventInviteReceived, invitePayload(inv, g.InviteToken)),
		reply(EventInviteSent, map[string]interface{}{"success": true}),
	}, nil
}

// pendingInvites replays live invitations to a user and drops the ones whose
// room is gone or no longer waiting.
func (c *Controller) pendingInvites(ctx context.Context, caller Caller) []Event {
	invites, err := c.store.PendingInvitationsFor(ctx, caller.UserID, c.now())
	if err != nil {
		c.log.WithField("user", caller.UserID).WithError(err).Error("failed to load pending invitations")
		return nil
	}

	var events []Event
	for _, inv := range invites {
		g, err := c.store.GameByID(ctx, inv.GameID)
		if err == nil && g.Status == models.StatusWaiting {
			events = append(events, Event{Type: EventInviteReceived, Payload: invitePayload(&inv, g.InviteToken)})
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			c.log.WithFields(logrus.Fields{"user": caller.UserID, "invitation": inv.ID}).WithError(err).Warn("failed to load invited game")
			continue
		}
		if err := c.store.DeleteInvitation(ctx, inv.ID); err != nil {
			c.log.WithField("invitation", inv.ID).WithError(err).Warn("failed to delete stale invitation")
		}
	}
	return events
}

func invitePayload(inv *models.Invitation, inviteToken string) map[string]interface{} {
	return map[string]interface{}{
		"from":        PlayerRef{ID: inv.From, Username: inv.FromUsername},
		"gameType":    inv.GameType,
		"roomCode":    inv.RoomCode,
		"inviteToken": inviteToken,
	}
}
