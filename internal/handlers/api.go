// internal/handlers/api.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
)

// API serves the read-only HTTP endpoints next to the websocket.
type API struct {
	Logger      *logrus.Logger
	Auth        *auth.Authenticator
	Stats       game.StatsStore
	Invitations game.InvitationStore
	Now         func() time.Time
}

// StatsHandler handles GET /bombchip/api/stats for the session user.
func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := a.authorize(w, r)
	if !ok {
		return
	}
	st, err := a.Stats.StatsFor(r.Context(), id.UserID)
	if err != nil {
		a.Logger.WithField("user", id.UserID).WithError(err).Error("failed to load stats")
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, a.Logger, http.StatusOK, st)
}

// InvitationsHandler handles GET /bombchip/api/invitations. Overdue pending
// invitations are marked expired before the live ones are listed.
func (a *API) InvitationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := a.authorize(w, r)
	if !ok {
		return
	}
	now := a.now()
	if err := a.Invitations.ExpireInvitations(r.Context(), id.UserID, now); err != nil {
		a.Logger.WithField("user", id.UserID).WithError(err).Error("failed to expire invitations")
		http.Error(w, "failed to load invitations", http.StatusInternalServerError)
		return
	}
	invs, err := a.Invitations.PendingInvitationsFor(r.Context(), id.UserID, now)
	if err != nil {
		a.Logger.WithField("user", id.UserID).WithError(err).Error("failed to list invitations")
		http.Error(w, "failed to load invitations", http.StatusInternalServerError)
		return
	}
	if invs == nil {
		invs = []models.Invitation{}
	}
	writeJSON(w, a.Logger, http.StatusOK, invs)
}

func (a *API) authorize(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return auth.Identity{}, false
	}
	id, err := identityFromRequest(r, a.Auth)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrUnauthenticated) {
			status = http.StatusUnauthorized
		}
		http.Error(w, "unauthorized", status)
		return auth.Identity{}, false
	}
	return id, true
}

func (a *API) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
