// internal/game/view.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

// OwnChip is a chip of the requesting player's own grid; bombs are visible.
type OwnChip struct {
	Index    int  `json:"index"`
	HasBomb  bool `json:"hasBomb"`
	Revealed bool `json:"revealed"`
}

// ObfChip is a chip of an opponent grid. HasBomb is only set once revealed.
type ObfChip struct {
	Index    int   `json:"index"`
	Revealed bool  `json:"revealed"`
	HasBomb  *bool `json:"hasBomb,omitempty"`
}

// OpponentGrid is one opponent's board from the requesting player's perspective.
type OpponentGrid struct {
	User     uuid.UUID `json:"user"`
	Username string    `json:"username"`
	Grid     []ObfChip `json:"grid"`
}

// PlayerSummary is the public per-player state shown once the match is running.
type PlayerSummary struct {
	User              uuid.UUID `json:"user"`
	Username          string    `json:"username"`
	BombsHitOnMyBoard int       `json:"bombsHitOnMyBoard"`
	IsEliminated      bool      `json:"isEliminated"`
}

// PlayerRef identifies a player in event payloads.
type PlayerRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// GameConfig is the room configuration echoed on join.
type GameConfig struct {
	GridSize   int `json:"gridSize"`
	BombCount  int `json:"bombCount"`
	MaxPlayers int `json:"maxPlayers"`
}

// PersonalizedStart builds the game:started payload for forUser: their own
// grid in full and every opponent grid with unrevealed bombs hidden.
func PersonalizedStart(g *models.Game, forUser uuid.UUID) map[string]interface{} {
	var myGrid []OwnChip
	opponents := make([]OpponentGrid, 0, len(g.PlayerGrids))
	for _, pg := range g.PlayerGrids {
		if pg.PlayerID == forUser {
			myGrid = ownGrid(pg.Grid)
			continue
		}
		name := ""
		if p, _ := g.Player(pg.PlayerID); p != nil {
			name = p.Username
		}
		opponents = append(opponents, OpponentGrid{User: pg.PlayerID, Username: name, Grid: obfuscateGrid(pg.Grid)})
	}

	return map[string]interface{}{
		"myGrid":        myGrid,
		"opponentGrids": opponents,
		"gridSize":      g.GridSize,
		"bombCount":     BombsRequired(g.GridSize),
		"currentPlayer": currentPlayerRef(g),
		"players":       summaries(g),
		"turnOrder":     g.TurnOrder,
	}
}

// RoomState is the room:joined payload for forUser.
func RoomState(g *models.Game, forUser uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"roomCode":    g.RoomCode,
		"inviteToken": g.InviteToken,
		"players":     g.Players,
		"gameConfig": GameConfig{
			GridSize:   g.GridSize,
			BombCount:  BombsRequired(g.GridSize),
			MaxPlayers: g.MaxPlayers,
		},
		"isHost": g.Host == forUser,
	}
}

func ownGrid(grid models.Grid) []OwnChip {
	out := make([]OwnChip, len(grid))
	for i, c := range grid {
		out[i] = OwnChip{Index: c.Index, HasBomb: c.HasBomb, Revealed: c.Revealed}
	}
	return out
}

func obfuscateGrid(grid models.Grid) []ObfChip {
	out := make([]ObfChip, len(grid))
	for i, c := range grid {
		out[i] = ObfChip{Index: c.Index, Revealed: c.Revealed}
		if c.Revealed {
			hasBomb := c.HasBomb
			out[i].HasBomb = &hasBomb
		}
	}
	return out
}

func summaries(g *models.Game) []PlayerSummary {
	out := make([]PlayerSummary, len(g.Players))
	for i, p := range g.Players {
		out[i] = PlayerSummary{
			User:              p.UserID,
			Username:          p.Username,
			BombsHitOnMyBoard: p.BombsHitOnMyBoard,
			IsEliminated:      p.IsEliminated,
		}
	}
	return out
}

func playerRef(g *models.Game, userID uuid.UUID) *PlayerRef {
	p, _ := g.Player(userID)
	if p == nil {
		return nil
	}
	return &PlayerRef{ID: p.UserID, Username: p.Username}
}

func currentPlayerRef(g *models.Game) *PlayerRef {
	id, ok := g.CurrentTurnPlayer()
	if !ok {
		return nil
	}
	return playerRef(g, id)
}

// Results derives each player's outcome from a finished game. Revealed
// chips and bomb hits are credited to whoever revealed them.
func Results(g *models.Game) []models.GameResult {
	revealed := make(map[uuid.UUID]int)
	hits := make(map[uuid.UUID]int)
	for _, pg := range g.PlayerGrids {
		for _, c := range pg.Grid {
			if !c.Revealed || c.RevealedBy == nil {
				continue
			}
			revealed[*c.RevealedBy]++
			if c.HasBomb {
				hits[*c.RevealedBy]++
			}
		}
	}

	results := make([]models.GameResult, len(g.Players))
	for i, p := range g.Players {
		results[i] = models.GameResult{
			UserID:        p.UserID,
			Won:           g.Winner != nil && *g.Winner == p.UserID,
			ChipsRevealed: revealed[p.UserID],
			BombsHit:      hits[p.UserID],
		}
	}
	return results
}
