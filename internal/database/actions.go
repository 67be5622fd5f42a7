package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/bombchip/internal/models"
)

// InsertActions writes a batch of match actions in a single transaction.
// Replayed entries are ignored, so a batch that was partially flushed before a
// crash can be written again.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, actions []models.GameAction) error {
	if len(actions) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO bombchip_actions (
				game_id, action_index, actor_user_id, action_type, action_payload, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, action_index) DO NOTHING
		`
		batch := &pgx.Batch{}
		for _, a := range actions {
			payload, err := json.Marshal(a.ActionPayload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", a.ActionType, err)
			}
			batch.Queue(q, a.GameID, a.ActionIndex, a.ActorUserID, a.ActionType, payload, a.Time())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
