package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

// NextAliveIndex scans turnOrder cyclically, starting just after from, for the
// next player that is not eliminated. At most one full cycle is scanned, so
// the player at from itself is the last candidate. Returns -1 when nobody is alive.
func NextAliveIndex(turnOrder []uuid.UUID, players []models.Player, from int) int {
	n := len(turnOrder)
	if n == 0 {
		return -1
	}
	out := make(map[uuid.UUID]bool, len(players))
	for _, p := range players {
		out[p.UserID] = p.IsEliminated
	}
	for step := 1; step <= n; step++ {
		idx := ((from+step)%n + n) % n
		if isOut, known := out[turnOrder[idx]]; known && !isOut {
			return idx
		}
	}
	return -1
}

// FirstAliveIndex returns the first non-eliminated entry of turnOrder, or -1.
func FirstAliveIndex(turnOrder []uuid.UUID, players []models.Player) int {
	return NextAliveIndex(turnOrder, players, -1)
}

// LastStanding returns the sole surviving player when exactly one is alive.
func LastStanding(players []models.Player) (models.Player, bool) {
	var survivor models.Player
	alive := 0
	for _, p := range players {
		if !p.IsEliminated {
			survivor = p
			alive++
		}
	}
	return survivor, alive == 1
}

// ShuffledTurnOrder returns a uniformly random permutation of the player identities.
func ShuffledTurnOrder(players []models.Player, shuffle func([]uuid.UUID)) []uuid.UUID {
	order := make([]uuid.UUID, len(players))
	for i, p := range players {
		order[i] = p.UserID
	}
	shuffle(order)
	return order
}

func randomShuffle(ids []uuid.UUID) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
