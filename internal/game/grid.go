// internal/game/grid.go
package game

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrBombLimit       = errors.New("bomb limit reached")
	ErrChipRevealed    = errors.New("chip already revealed")
)

// Allowed room configurations.
const (
	MinGridSize   = 3
	MaxGridSize   = 6
	MinMaxPlayers = 2
	MaxMaxPlayers = 4

	DefaultGridSize   = 4
	DefaultMaxPlayers = 2
)

// BombsRequired is the number of bombs every player hides. It always equals the grid size.
func BombsRequired(gridSize int) int {
	return gridSize
}

// CreateEmptyGrid returns size*size unrevealed chips without bombs.
func CreateEmptyGrid(size int) models.Grid {
	grid := make(models.Grid, size*size)
	for i := range grid {
		grid[i] = models.Chip{Index: i}
	}
	return grid
}

// PlaceBomb toggles the bomb on chip index. Adding a bomb past bombsRequired
// fails and leaves the grid untouched; removing one always succeeds.
// Returns whether the chip now holds a bomb.
func PlaceBomb(grid models.Grid, index, bombsRequired int) (bool, error) {
	if index < 0 || index >= len(grid) {
		return false, ErrInvalidPosition
	}
	if grid[index].HasBomb {
		grid[index].HasBomb = false
		return false, nil
	}
	if grid.BombCount() >= bombsRequired {
		return false, ErrBombLimit
	}
	grid[index].HasBomb = true
	return true, nil
}

// RevealChip flips chip index face up on behalf of revealer and reports whether it hid a bomb.
func RevealChip(grid models.Grid, index int, revealer uuid.UUID) (bool, error) {
	if index < 0 || index >= len(grid) {
		return false, ErrInvalidPosition
	}
	if grid[index].Revealed {
		return false, ErrChipRevealed
	}
	by := revealer
	grid[index].Revealed = true
	grid[index].RevealedBy = &by
	return grid[index].HasBomb, nil
}
