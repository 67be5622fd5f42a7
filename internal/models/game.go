// internal/models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle phase of a single room.
type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlacing  GameStatus = "placing"
	StatusStarting GameStatus = "starting"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

// Chip is one cell of a player's grid.
type Chip struct {
	Index      int        `json:"index"`
	HasBomb    bool       `json:"hasBomb"`
	Revealed   bool       `json:"revealed"`
	RevealedBy *uuid.UUID `json:"revealedBy,omitempty"`
}

// Grid is a row-major array of gridSize*gridSize chips.
type Grid []Chip

// BombCount returns the number of chips currently holding a bomb.
func (g Grid) BombCount() int {
	n := 0
	for _, c := range g {
		if c.HasBomb {
			n++
		}
	}
	return n
}

// PlayerGrid binds a grid to its owner.
type PlayerGrid struct {
	PlayerID uuid.UUID `json:"playerId"`
	Grid     Grid      `json:"grid"`
}

// Game is the persisted document for one room. It is the only shared mutable
// resource in the engine.
type Game struct {
	ID         uuid.UUID  `json:"id"`
	RoomCode   string     `json:"roomCode"`
	Host       uuid.UUID  `json:"host"`
	GridSize   int        `json:"gridSize"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     GameStatus `json:"status"`

	// Revision increases with every stored write. SaveGame only applies to
	// the revision it was read at.
	Revision int64 `json:"revision"`

	// Players is kept in join order, which is not the turn order.
	Players     []Player     `json:"players"`
	PlayerGrids []PlayerGrid `json:"playerGrids"`

	// TurnOrder is fixed once at match start and never mutated afterwards.
	TurnOrder        []uuid.UUID `json:"turnOrder"`
	CurrentTurnIndex int         `json:"currentTurnIndex"`

	Winner *uuid.UUID  `json:"winner,omitempty"`
	Losers []uuid.UUID `json:"losers"`

	InviteToken string `json:"inviteToken"`

	CreatedAt        time.Time  `json:"createdAt"`
	PlacingStartedAt *time.Time `json:"placingStartedAt,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// Player returns the participant record for userID and its index in Players.
func (g *Game) Player(userID uuid.UUID) (*Player, int) {
	for i := range g.Players {
		if g.Players[i].UserID == userID {
			return &g.Players[i], i
		}
	}
	return nil, -1
}

// IsMember reports whether userID is in the player list.
func (g *Game) IsMember(userID uuid.UUID) bool {
	p, _ := g.Player(userID)
	return p != nil
}

// GridOf returns the grid owned by userID and its index in PlayerGrids.
func (g *Game) GridOf(userID uuid.UUID) (Grid, int) {
	for i := range g.PlayerGrids {
		if g.PlayerGrids[i].PlayerID == userID {
			return g.PlayerGrids[i].Grid, i
		}
	}
	return nil, -1
}

// AlivePlayers returns the players that have not been eliminated, in join order.
func (g *Game) AlivePlayers() []Player {
	alive := make([]Player, 0, len(g.Players))
	for _, p := range g.Players {
		if !p.IsEliminated {
			alive = append(alive, p)
		}
	}
	return alive
}

// CurrentTurnPlayer returns the identity at TurnOrder[CurrentTurnIndex].
func (g *Game) CurrentTurnPlayer() (uuid.UUID, bool) {
	if g.CurrentTurnIndex < 0 || g.CurrentTurnIndex >= len(g.TurnOrder) {
		return uuid.Nil, false
	}
	return g.TurnOrder[g.CurrentTurnIndex], true
}

// Eliminate flags the player as eliminated and records them as a loser.
// Returns false if the player is unknown or already eliminated.
func (g *Game) Eliminate(userID uuid.UUID) bool {
	p, _ := g.Player(userID)
	if p == nil || p.IsEliminated {
		return false
	}
	p.IsEliminated = true
	g.Losers = append(g.Losers, userID)
	return true
}

// Finish moves the game to finished. winner may be nil when nobody is left.
func (g *Game) Finish(winner *uuid.UUID, at time.Time) {
	g.Status = StatusFinished
	g.Winner = winner
	g.FinishedAt = &at
}

// Clone returns a deep copy so stores never share slices with callers.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.Players = append([]Player(nil), g.Players...)
	out.TurnOrder = append([]uuid.UUID(nil), g.TurnOrder...)
	out.Losers = append([]uuid.UUID(nil), g.Losers...)
	if g.PlayerGrids != nil {
		out.PlayerGrids = make([]PlayerGrid, len(g.PlayerGrids))
		for i, pg := range g.PlayerGrids {
			out.PlayerGrids[i] = PlayerGrid{PlayerID: pg.PlayerID, Grid: pg.Grid.Clone()}
		}
	}
	out.Winner = cloneID(g.Winner)
	out.PlacingStartedAt = cloneTime(g.PlacingStartedAt)
	out.StartedAt = cloneTime(g.StartedAt)
	out.FinishedAt = cloneTime(g.FinishedAt)
	return &out
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for i, c := range g {
		out[i] = c
		out[i].RevealedBy = cloneID(c.RevealedBy)
	}
	return out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
