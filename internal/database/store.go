package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore persists games as JSONB documents next to a few indexed
// columns. Conditional writes are single UPDATE statements whose WHERE clause
// carries the guard, so concurrent servers sharing a database stay consistent.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ game.Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateGame(ctx context.Context, g *models.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	q := `
		INSERT INTO bombchip_games (id, room_code, invite_token, status, created_at, revision, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, q, g.ID, g.RoomCode, g.InviteToken, string(g.Status), g.CreatedAt, g.Revision, doc)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "bombchip_games_live_room_code" {
		return game.ErrRoomCodeTaken
	}
	return err
}

func (s *PostgresStore) RoomCodeInUse(ctx context.Context, roomCode string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bombchip_games WHERE room_code = $1 AND status <> 'finished')`,
		roomCode,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) GameByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx, `SELECT doc FROM bombchip_games WHERE id = $1`, id))
}

func (s *PostgresStore) GameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx,
		`SELECT doc FROM bombchip_games WHERE room_code = $1 AND status <> 'finished'`, roomCode))
}

func (s *PostgresStore) GameByInviteToken(ctx context.Context, token string) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx, `SELECT doc FROM bombchip_games WHERE invite_token = $1`, token))
}

func (s *PostgresStore) SaveGame(ctx context.Context, g *models.Game, from models.GameStatus) error {
	next := *g
	next.Revision++
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	q := `
		UPDATE bombchip_games
		SET status = $2, doc = $3, revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND revision = $5
	`
	ct, err := s.pool.Exec(ctx, q, g.ID, string(g.Status), doc, string(from), g.Revision)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return game.ErrConflict
	}
	g.Revision = next.Revision
	return nil
}

func (s *PostgresStore) DeleteGame(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bombchip_games WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) AddPlayer(ctx context.Context, gameID uuid.UUID, p models.Player) (*models.Game, error) {
	appended, err := json.Marshal([]models.Player{p})
	if err != nil {
		return nil, err
	}
	member, err := json.Marshal([]map[string]uuid.UUID{{"user": p.UserID}})
	if err != nil {
		return nil, err
	}
	q := `
		UPDATE bombchip_games
		SET doc = jsonb_set(
		        jsonb_set(doc, '{players}', (doc->'players') || $2::jsonb),
		        '{revision}', to_jsonb(revision + 1)),
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'waiting'
		  AND jsonb_array_length(doc->'players') < (doc->>'maxPlayers')::int
		  AND NOT (doc->'players') @> $3::jsonb
		RETURNING doc
	`
	g, err := scanGame(s.pool.QueryRow(ctx, q, gameID, string(appended), string(member)))
	return s.conditional(ctx, gameID, g, err)
}

func (s *PostgresStore) SaveGrid(ctx context.Context, gameID, userID uuid.UUID, grid models.Grid) error {
	g, err := s.GameByID(ctx, gameID)
	if err != nil {
		return err
	}
	_, gridIdx := g.GridOf(userID)
	_, playerIdx := g.Player(userID)
	if gridIdx < 0 || playerIdx < 0 {
		return game.ErrConflict
	}
	doc, err := json.Marshal(grid)
	if err != nil {
		return err
	}
	q := `
		UPDATE bombchip_games
		SET doc = jsonb_set(
		        jsonb_set(doc, ARRAY['playerGrids', $2, 'grid'], $3::jsonb),
		        '{revision}', to_jsonb(revision + 1)),
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'placing'
		  AND doc #>> ARRAY['playerGrids', $2, 'playerId'] = $4
		  AND doc #>> ARRAY['players', $5, 'user'] = $4
		  AND NOT (doc #>> ARRAY['players', $5, 'bombsPlaced'])::boolean
	`
	ct, err := s.pool.Exec(ctx, q, gameID, strconv.Itoa(gridIdx), string(doc), userID.String(), strconv.Itoa(playerIdx))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return game.ErrConflict
	}
	return nil
}

func (s *PostgresStore) MarkReady(ctx context.Context, gameID, userID uuid.UUID) (*models.Game, error) {
	current, err := s.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	_, idx := current.Player(userID)
	if idx < 0 {
		return nil, game.ErrConflict
	}
	q := `
		UPDATE bombchip_games
		SET doc = jsonb_set(
		        jsonb_set(doc, ARRAY['players', $2, 'bombsPlaced'], 'true'::jsonb),
		        '{revision}', to_jsonb(revision + 1)),
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'placing'
		  AND doc #>> ARRAY['players', $2, 'user'] = $3
		  AND NOT (doc #>> ARRAY['players', $2, 'bombsPlaced'])::boolean
		RETURNING doc
	`
	g, err := scanGame(s.pool.QueryRow(ctx, q, gameID, strconv.Itoa(idx), userID.String()))
	return s.conditional(ctx, gameID, g, err)
}

func (s *PostgresStore) BeginMatch(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	q := `
		UPDATE bombchip_games
		SET status = 'starting',
		    doc = jsonb_set(
		        jsonb_set(doc, '{status}', '"starting"'::jsonb),
		        '{revision}', to_jsonb(revision + 1)),
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'placing'
		  AND NOT EXISTS (
		      SELECT 1 FROM jsonb_array_elements(doc->'players') AS p
		      WHERE NOT (p->>'isEliminated')::boolean AND NOT (p->>'bombsPlaced')::boolean
		  )
		RETURNING doc
	`
	g, err := scanGame(s.pool.QueryRow(ctx, q, gameID))
	return s.conditional(ctx, gameID, g, err)
}

func (s *PostgresStore) DeleteStaleGames(ctx context.Context, cutoff time.Time) ([]string, error) {
	q := `
		DELETE FROM bombchip_games
		WHERE status IN ('waiting', 'starting') AND created_at < $1
		RETURNING room_code
	`
	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// conditional turns a guarded UPDATE that matched nothing into ErrConflict,
// or ErrNotFound when the game itself is gone.
func (s *PostgresStore) conditional(ctx context.Context, gameID uuid.UUID, g *models.Game, err error) (*models.Game, error) {
	if !errors.Is(err, game.ErrNotFound) {
		return g, err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bombchip_games WHERE id = $1)`, gameID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, game.ErrConflict
	}
	return nil, game.ErrNotFound
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	var g models.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("decode game document: %w", err)
	}
	return &g, nil
}

const invitationColumns = `id, from_user, from_username, to_user, game_id, game_type, room_code, status, created_at, expires_at`

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	q := `
		INSERT INTO bombchip_invitations (` + invitationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.pool.Exec(ctx, q,
		inv.ID, inv.From, inv.FromUsername, inv.To, inv.GameID,
		inv.GameType, inv.RoomCode, string(inv.Status), inv.CreatedAt, inv.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) HasPendingInvitation(ctx context.Context, from, to, gameID uuid.UUID) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM bombchip_invitations
			WHERE from_user = $1 AND to_user = $2 AND game_id = $3 AND status = 'pending'
		)
	`
	var exists bool
	err := s.pool.QueryRow(ctx, q, from, to, gameID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) PendingInvitationsFor(ctx context.Context, to uuid.UUID, now time.Time) ([]models.Invitation, error) {
	return s.queryInvitations(ctx, `
		SELECT `+invitationColumns+` FROM bombchip_invitations
		WHERE to_user = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY created_at
	`, to, now)
}

func (s *PostgresStore) PendingInvitationsForGame(ctx context.Context, gameID uuid.UUID) ([]models.Invitation, error) {
	return s.queryInvitations(ctx, `
		SELECT `+invitationColumns+` FROM bombchip_invitations
		WHERE game_id = $1 AND status = 'pending'
		ORDER BY created_at
	`, gameID)
}

func (s *PostgresStore) AcceptInvitations(ctx context.Context, gameID, to uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE bombchip_invitations SET status = 'accepted'
		WHERE game_id = $1 AND to_user = $2 AND status = 'pending'
	`, gameID, to)
	return err
}

func (s *PostgresStore) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bombchip_invitations WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) ExpireInvitations(ctx context.Context, to uuid.UUID, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE bombchip_invitations SET status = 'expired'
		WHERE to_user = $1 AND status = 'pending' AND expires_at <= $2
	`, to, now)
	return err
}

func (s *PostgresStore) DeleteStaleInvitations(ctx context.Context, cutoff time.Time) (int, error) {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM bombchip_invitations WHERE status = 'pending' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (s *PostgresStore) queryInvitations(ctx context.Context, q string, args ...interface{}) ([]models.Invitation, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		var status string
		if err := rows.Scan(
			&inv.ID, &inv.From, &inv.FromUsername, &inv.To, &inv.GameID,
			&inv.GameType, &inv.RoomCode, &status, &inv.CreatedAt, &inv.ExpiresAt,
		); err != nil {
			return nil, err
		}
		inv.Status = models.InvitationStatus(status)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RecordGameResult folds every result into its user's aggregate in one
// transaction. Rows are locked so concurrent finishes serialize per user.
func (s *PostgresStore) RecordGameResult(ctx context.Context, results []models.GameResult, at time.Time) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, r := range results {
			st, err := statsFor(ctx, tx, r.UserID, true)
			if err != nil {
				return fmt.Errorf("load stats %s: %w", r.UserID, err)
			}
			st.Apply(r, at)
			if err := upsertStats(ctx, tx, st); err != nil {
				return fmt.Errorf("save stats %s: %w", r.UserID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) StatsFor(ctx context.Context, userID uuid.UUID) (*models.Stats, error) {
	return statsFor(ctx, s.pool, userID, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func statsFor(ctx context.Context, q querier, userID uuid.UUID, lock bool) (*models.Stats, error) {
	sql := `
		SELECT total_games, wins, losses, current_streak, best_streak, chips_revealed, bombs_hit, updated_at
		FROM bombchip_stats WHERE user_id = $1
	`
	if lock {
		sql += ` FOR UPDATE`
	}
	st := &models.Stats{UserID: userID}
	err := q.QueryRow(ctx, sql, userID).Scan(
		&st.TotalGames, &st.Wins, &st.Losses, &st.CurrentStreak, &st.BestStreak,
		&st.ChipsRevealed, &st.BombsHit, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.Stats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func upsertStats(ctx context.Context, tx pgx.Tx, st *models.Stats) error {
	q := `
		INSERT INTO bombchip_stats (
			user_id, total_games, wins, losses, current_streak, best_streak, chips_revealed, bombs_hit, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = EXCLUDED.total_games,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			chips_revealed = EXCLUDED.chips_revealed,
			bombs_hit = EXCLUDED.bombs_hit,
			updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Exec(ctx, q,
		st.UserID, st.TotalGames, st.Wins, st.Losses, st.CurrentStreak,
		st.BestStreak, st.ChipsRevealed, st.BombsHit, st.UpdatedAt,
	)
	return err
}
