package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

// GameStore persists Game documents. Conditional methods apply only when
// their guard still holds and return ErrConflict otherwise. Every write
// advances the game's revision.
type GameStore interface {
	// CreateGame inserts a new game, failing with ErrRoomCodeTaken when an
	// unfinished game already uses the room code.
	CreateGame(ctx context.Context, g *models.Game) error
	RoomCodeInUse(ctx context.Context, roomCode string) (bool, error)
	GameByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
	// GameByRoomCode returns the unfinished game holding roomCode.
	GameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error)
	GameByInviteToken(ctx context.Context, token string) (*models.Game, error)
	// SaveGame overwrites the document only while its stored status is still
	// from and its revision is still g.Revision, so a write based on a stale
	// read fails with ErrConflict instead of dropping the other change. On
	// success g.Revision is advanced to the stored revision.
	SaveGame(ctx context.Context, g *models.Game, from models.GameStatus) error
	DeleteGame(ctx context.Context, id uuid.UUID) error

	// AddPlayer appends p while the game is waiting, below capacity and p is not yet a member.
	AddPlayer(ctx context.Context, gameID uuid.UUID, p models.Player) (*models.Game, error)
	// SaveGrid replaces the caller's grid while the game is placing and the caller is not ready.
	SaveGrid(ctx context.Context, gameID, userID uuid.UUID, grid models.Grid) error
	// MarkReady sets bombsPlaced for userID while the game is placing and the flag is still false.
	MarkReady(ctx context.Context, gameID, userID uuid.UUID) (*models.Game, error)
	// BeginMatch moves placing to starting when every non-eliminated player is
	// ready. Exactly one concurrent caller gets the game back.
	BeginMatch(ctx context.Context, gameID uuid.UUID) (*models.Game, error)

	// DeleteStaleGames removes waiting and starting games created before cutoff
	// together with their invitations, returning the freed room codes.
	DeleteStaleGames(ctx context.Context, cutoff time.Time) ([]string, error)
}

// InvitationStore persists invitations.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	HasPendingInvitation(ctx context.Context, from, to, gameID uuid.UUID) (bool, error)
	// PendingInvitationsFor lists pending invitations for a user that have not expired at now.
	PendingInvitationsFor(ctx context.Context, to uuid.UUID, now time.Time) ([]models.Invitation, error)
	PendingInvitationsForGame(ctx context.Context, gameID uuid.UUID) ([]models.Invitation, error)
	AcceptInvitations(ctx context.Context, gameID, to uuid.UUID) error
	DeleteInvitation(ctx context.Context, id uuid.UUID) error
	// ExpireInvitations marks a user's pending invitations past their expiry as expired.
	ExpireInvitations(ctx context.Context, to uuid.UUID, now time.Time) error
	DeleteStaleInvitations(ctx context.Context, cutoff time.Time) (int, error)
}

// StatsStore is the stats aggregator.
type StatsStore interface {
	RecordGameResult(ctx context.Context, results []models.GameResult, at time.Time) error
	StatsFor(ctx context.Context, userID uuid.UUID) (*models.Stats, error)
}

// Store is everything the controller persists through.
type Store interface {
	GameStore
	InvitationStore
	StatsStore
}
