package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweep deletes waiting and starting rooms older than the room TTL and
// pending invitations older than the invitation TTL. Failures are logged.
func (c *Controller) Sweep(ctx context.Context) {
	now := c.now()

	codes, err := c.store.DeleteStaleGames(ctx, now.Add(-c.roomTTL))
	if err != nil {
		c.log.WithError(err).Error("sweeper: failed to delete stale rooms")
	} else {
		for _, code := range codes {
			c.rooms.DeleteRoom(code)
		}
		c.metrics.Swept(len(codes))
	}

	n, err := c.store.DeleteStaleInvitations(ctx, now.Add(-c.inviteTTL))
	if err != nil {
		c.log.WithError(err).Error("sweeper: failed to delete stale invitations")
	}

	if len(codes) > 0 || n > 0 {
		c.log.WithFields(logrus.Fields{"rooms": len(codes), "invitations": n}).Info("sweeper: removed stale records")
	}
}

// StartSweeper runs Sweep immediately and then on every tick until ctx is done.
func (c *Controller) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		c.Sweep(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
}
