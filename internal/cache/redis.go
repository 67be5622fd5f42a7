// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for match action logs.
const DefaultQueueName = "bombchip_actions"

// ConnectRedis opens a client for addr and verifies it with a ping.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionPublisher queues match actions for the historian. Each game gets a
// monotonically increasing action index kept in Redis, so several servers can
// publish for the same game without colliding.
type ActionPublisher struct {
	rdb   *redis.Client
	queue string
	now   func() time.Time
}

func NewActionPublisher(rdb *redis.Client, queue string) *ActionPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionPublisher{rdb: rdb, queue: queue, now: time.Now}
}

// RecordAction serializes the action to JSON, then pushes it to the queue.
func (p *ActionPublisher) RecordAction(ctx context.Context, gameID, actorID uuid.UUID, actionType string, payload map[string]interface{}) error {
	idx, err := p.rdb.Incr(ctx, actionIndexKey(gameID)).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate action index: %w", err)
	}
	if idx == 1 {
		p.rdb.Expire(ctx, actionIndexKey(gameID), 24*time.Hour)
	}

	data, err := json.Marshal(models.GameAction{
		GameID:        gameID,
		ActionIndex:   idx,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     p.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

func actionIndexKey(gameID uuid.UUID) string {
	return "bombchip:action_index:" + gameID.String()
}
