package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/models"
)

// MemoryStore is a process-local Store. Every call copies documents in and
// out, so callers never share state with the store or with each other.
type MemoryStore struct {
	mu          sync.Mutex
	games       map[uuid.UUID]*models.Game
	invitations map[uuid.UUID]*models.Invitation
	stats       map[uuid.UUID]*models.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:       make(map[uuid.UUID]*models.Game),
		invitations: make(map[uuid.UUID]*models.Invitation),
		stats:       make(map[uuid.UUID]*models.Stats),
	}
}

func (s *MemoryStore) CreateGame(_ context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveByCode(g.RoomCode) != nil {
		return ErrRoomCodeTaken
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *MemoryStore) RoomCodeInUse(_ context.Context, roomCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveByCode(roomCode) != nil, nil
}

func (s *MemoryStore) GameByID(_ context.Context, id uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) GameByRoomCode(_ context.Context, roomCode string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.liveByCode(roomCode)
	if g == nil {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) GameByInviteToken(_ context.Context, token string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.InviteToken == token {
			return g.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveGame(_ context.Context, g *models.Game, from models.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.games[g.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from || stored.Revision != g.Revision {
		return ErrConflict
	}
	g.Revision++
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *MemoryStore) DeleteGame(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteGame(id)
	return nil
}

func (s *MemoryStore) AddPlayer(_ context.Context, gameID uuid.UUID, p models.Player) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	if g.Status != models.StatusWaiting || len(g.Players) >= g.MaxPlayers || g.IsMember(p.UserID) {
		return nil, ErrConflict
	}
	g.Players = append(g.Players, p)
	g.Revision++
	return g.Clone(), nil
}

func (s *MemoryStore) SaveGrid(_ context.Context, gameID, userID uuid.UUID, grid models.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return ErrNotFound
	}
	p, _ := g.Player(userID)
	_, idx := g.GridOf(userID)
	if g.Status != models.StatusPlacing || p == nil || p.BombsPlaced || idx < 0 {
		return ErrConflict
	}
	g.PlayerGrids[idx].Grid = grid.Clone()
	g.Revision++
	return nil
}

func (s *MemoryStore) MarkReady(_ context.Context, gameID, userID uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	p, _ := g.Player(userID)
	if g.Status != models.StatusPlacing || p == nil || p.BombsPlaced {
		return nil, ErrConflict
	}
	p.BombsPlaced = true
	g.Revision++
	return g.Clone(), nil
}

func (s *MemoryStore) BeginMatch(_ context.Context, gameID uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	if g.Status != models.StatusPlacing || !allAliveReady(g) {
		return nil, ErrConflict
	}
	g.Status = models.StatusStarting
	g.Revision++
	return g.Clone(), nil
}

func (s *MemoryStore) DeleteStaleGames(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []string
	for id, g := range s.games {
		if (g.Status == models.StatusWaiting || g.Status == models.StatusStarting) && g.CreatedAt.Before(cutoff) {
			codes = append(codes, g.RoomCode)
			s.deleteGame(id)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *inv
	s.invitations[inv.ID] = &v
	return nil
}

func (s *MemoryStore) HasPendingInvitation(_ context.Context, from, to, gameID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.From == from && inv.To == to && inv.GameID == gameID && inv.Status == models.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) PendingInvitationsFor(_ context.Context, to uuid.UUID, now time.Time) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(inv *models.Invitation) bool {
		return inv.To == to && inv.Status == models.InvitationPending && inv.ExpiresAt.After(now)
	}), nil
}

func (s *MemoryStore) PendingInvitationsForGame(_ context.Context, gameID uuid.UUID) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(inv *models.Invitation) bool {
		return inv.GameID == gameID && inv.Status == models.InvitationPending
	}), nil
}

func (s *MemoryStore) AcceptInvitations(_ context.Context, gameID, to uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.GameID == gameID && inv.To == to && inv.Status == models.InvitationPending {
			inv.Status = models.InvitationAccepted
		}
	}
	return nil
}

func (s *MemoryStore) DeleteInvitation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invitations, id)
	return nil
}

func (s *MemoryStore) ExpireInvitations(_ context.Context, to uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.To == to && inv.Status == models.InvitationPending && !inv.ExpiresAt.After(now) {
			inv.Status = models.InvitationExpired
		}
	}
	return nil
}

func (s *MemoryStore) DeleteStaleInvitations(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, inv := range s.invitations {
		if inv.Status == models.InvitationPending && inv.CreatedAt.Before(cutoff) {
			delete(s.invitations, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RecordGameResult(_ context.Context, results []models.GameResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		st, ok := s.stats[r.UserID]
		if !ok {
			st = &models.Stats{UserID: r.UserID}
			s.stats[r.UserID] = st
		}
		st.Apply(r, at)
	}
	return nil
}

func (s *MemoryStore) StatsFor(_ context.Context, userID uuid.UUID) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return &models.Stats{UserID: userID}, nil
	}
	v := *st
	return &v, nil
}

func (s *MemoryStore) liveByCode(roomCode string) *models.Game {
	for _, g := range s.games {
		if g.RoomCode == roomCode && g.Status != models.StatusFinished {
			return g
		}
	}
	return nil
}

// deleteGame drops a game and its invitations. Caller holds mu.
func (s *MemoryStore) deleteGame(id uuid.UUID) {
	delete(s.games, id)
	for invID, inv := range s.invitations {
		if inv.GameID == id {
			delete(s.invitations, invID)
		}
	}
}

func (s *MemoryStore) collect(match func(*models.Invitation) bool) []models.Invitation {
	var out []models.Invitation
	for _, inv := range s.invitations {
		if match(inv) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// allAliveReady is the placing to starting guard shared by every store.
func allAliveReady(g *models.Game) bool {
	for _, p := range g.Players {
		if !p.IsEliminated && !p.BombsPlaced {
			return false
		}
	}
	return true
}
