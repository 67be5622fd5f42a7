// internal/game/controller.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/metrics"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
)

// Reasons carried on game over events.
const (
	ReasonLastStanding = "Last player standing"
	ReasonOpponentLeft = "Opponent left the game"
	ReasonAllLeft      = "All players left"
	ReasonPlayerLeft   = "Player left"
)

// Notifier delivers an event to every live connection of a user.
type Notifier interface {
	SendToUser(userID uuid.UUID, ev Event)
}

// Rooms tracks the room each connected user currently occupies.
type Rooms interface {
	Set(userID uuid.UUID, roomCode string)
	Get(userID uuid.UUID) (string, bool)
	Delete(userID uuid.UUID)
	Members(roomCode string) []uuid.UUID
	DeleteRoom(roomCode string)
}

// ActionRecorder receives an append-only log of match actions. Recording is
// best effort; failures never affect the match.
type ActionRecorder interface {
	RecordAction(ctx context.Context, gameID, actorID uuid.UUID, actionType string, payload map[string]interface{}) error
}

// Caller is the authenticated identity behind an incoming event.
type Caller struct {
	UserID   uuid.UUID
	Username string
}

// Options configures a Controller. Store, Rooms and Notifier are required.
type Options struct {
	Store    Store
	Rooms    Rooms
	Notifier Notifier
	Actions  ActionRecorder
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger

	RoomTTL   time.Duration
	InviteTTL time.Duration

	Now     func() time.Time
	Shuffle func([]uuid.UUID)
}

const (
	maxConflictAttempts = 4
	conflictRetryDelay  = 20 * time.Millisecond
)

type handlerFunc func(ctx context.Context, caller Caller, payload json.RawMessage) ([]Outbound, error)

// Controller runs the room and match state machine. It is the only writer of
// a game's status. Handlers load the game, validate, persist and then return
// the events to deliver; nothing is sent before the write succeeds.
type Controller struct {
	store    Store
	rooms    Rooms
	notifier Notifier
	actions  ActionRecorder
	metrics  *metrics.Metrics
	log      *logrus.Logger

	roomTTL   time.Duration
	inviteTTL time.Duration

	now     func() time.Time
	shuffle func([]uuid.UUID)

	handlers map[string]handlerFunc
	failures map[string]string
}

func NewController(opts Options) *Controller {
	c := &Controller{
		store:     opts.Store,
		rooms:     opts.Rooms,
		notifier:  opts.Notifier,
		actions:   opts.Actions,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		roomTTL:   opts.RoomTTL,
		inviteTTL: opts.InviteTTL,
		now:       opts.Now,
		shuffle:   opts.Shuffle,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.roomTTL <= 0 {
		c.roomTTL = 30 * time.Minute
	}
	if c.inviteTTL <= 0 {
		c.inviteTTL = 30 * time.Minute
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.shuffle == nil {
		c.shuffle = randomShuffle
	}

	c.handlers = map[string]handlerFunc{
		EventRoomCreate:       c.createRoom,
		EventRoomJoin:         c.joinRoom,
		EventRoomJoinInvite:   c.joinInvite,
		EventRoomLeave:        c.leaveRoom,
		EventGameStartPlacing: c.startPlacing,
		EventGamePlaceBomb:    c.placeBomb,
		EventGameReady:        c.markReady,
		EventGameSelectChip:   c.selectChip,
		EventInviteSend:       c.sendInvite,
		EventPing:             c.ping,
	}
	c.failures = map[string]string{
		EventRoomCreate:       "Failed to create room",
		EventRoomJoin:         "Failed to join room",
		EventRoomJoinInvite:   "Failed to join room",
		EventRoomLeave:        "Failed to leave room",
		EventGameStartPlacing: "Failed to start placement phase",
		EventGamePlaceBomb:    "Failed to place bomb",
		EventGameReady:        "Failed to set ready",
		EventGameSelectChip:   "Failed to select chip",
		EventInviteSend:       "Failed to send invite",
	}
	return c
}

// Handle runs one client event. Room and user addressed events are delivered
// through the Notifier; the returned events are for the originating connection only.
func (c *Controller) Handle(ctx context.Context, caller Caller, eventType string, payload json.RawMessage) []Event {
	start := time.Now()
	h, ok := c.handlers[eventType]
	if !ok {
		c.metrics.ObserveEvent("unknown", "rejected", time.Since(start))
		return []Event{ErrorEvent(fmt.Sprintf("Unknown event type: %s", eventType))}
	}

	out, err := h(ctx, caller, payload)
	replies := c.dispatch(out)

	outcome := "ok"
	var actionErr *ActionError
	switch {
	case err == nil:
	case errors.As(err, &actionErr):
		outcome = "rejected"
		replies = append(replies, ErrorEvent(actionErr.Message))
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
		c.log.WithFields(logrus.Fields{"event": eventType, "user": caller.UserID}).Debug("state moved on, event dropped")
	default:
		outcome = "failed"
		c.log.WithFields(logrus.Fields{"event": eventType, "user": caller.UserID}).WithError(err).Error("event failed")
		replies = append(replies, ErrorEvent(c.failures[eventType]))
	}
	c.metrics.ObserveEvent(eventType, outcome, time.Since(start))
	return replies
}

// Connected replays the pending invitations addressed to a freshly connected user.
func (c *Controller) Connected(ctx context.Context, caller Caller) []Event {
	return c.pendingInvites(ctx, caller)
}

// Disconnected runs the leave flow once the user's last connection is gone.
func (c *Controller) Disconnected(ctx context.Context, caller Caller) {
	out, err := c.leave(ctx, caller)
	if err != nil && !errors.Is(err, ErrConflict) {
		c.log.WithField("user", caller.UserID).WithError(err).Error("leave on disconnect failed")
	}
	c.dispatch(out)
}

func (c *Controller) dispatch(out []Outbound) []Event {
	var replies []Event
	for _, o := range out {
		switch {
		case o.Reply:
			replies = append(replies, o.Event)
		case o.Close:
			c.rooms.DeleteRoom(o.Room)
		case o.Room != "":
			for _, member := range c.rooms.Members(o.Room) {
				if member != o.Except {
					c.notifier.SendToUser(member, o.Event)
				}
			}
		default:
			c.notifier.SendToUser(o.To, o.Event)
		}
	}
	return replies
}

// retryConflicts runs fn until it stops failing with ErrConflict, backing
// off between attempts. fn must re-read the game each time.
func retryConflicts(ctx context.Context, fn func() ([]Outbound, error)) ([]Outbound, error) {
	var err error
	for attempt := 0; attempt < maxConflictAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * conflictRetryDelay):
			}
		}
		var out []Outbound
		out, err = fn()
		if !errors.Is(err, ErrConflict) {
			return out, err
		}
	}
	return nil, err
}

func (c *Controller) ping(context.Context, Caller, json.RawMessage) ([]Outbound, error) {
	return []Outbound{reply(EventPong, nil)}, nil
}

// finished records the side effects of a game reaching finished. Stats are
// only recorded when there is a winner.
func (c *Controller) finished(ctx context.Context, g *models.Game, reason string) {
	c.metrics.GameFinished(reason)
	payload := map[string]interface{}{"reason": reason}
	if g.Winner != nil {
		payload["winner"] = *g.Winner
	}
	c.record(ctx, g.ID, uuid.Nil, "game_finished", payload)

	if g.Winner == nil {
		return
	}
	if err := c.store.RecordGameResult(ctx, Results(g), c.now()); err != nil {
		c.log.WithField("room", g.RoomCode).WithError(err).Error("failed to update stats")
	}
}

func (c *Controller) record(ctx context.Context, gameID, actor uuid.UUID, actionType string, payload map[string]interface{}) {
	if c.actions == nil {
		return
	}
	if err := c.actions.RecordAction(ctx, gameID, actor, actionType, payload); err != nil {
		c.log.WithFields(logrus.Fields{"game": gameID, "action": actionType}).WithError(err).Warn("failed to record action")
	}
}

func (c *Controller) newPlayer(caller Caller) models.Player {
	return models.Player{UserID: caller.UserID, Username: caller.Username, JoinedAt: c.now()}
}

// roomGame loads the unfinished game of the caller's current room. A nil
// game with a nil error means the room no longer exists.
func (c *Controller) roomGame(ctx context.Context, userID uuid.UUID) (string, *models.Game, bool, error) {
	code, ok := c.rooms.Get(userID)
	if !ok {
		return "", nil, false, nil
	}
	g, err := c.store.GameByRoomCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return code, nil, true, nil
	}
	if err != nil {
		return code, nil, true, fmt.Errorf("load room %s: %w", code, err)
	}
	return code, g, true, nil
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return rejectf("Invalid payload")
	}
	return nil
}
