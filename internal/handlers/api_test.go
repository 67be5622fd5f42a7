package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, now time.Time) (*API, *game.MemoryStore) {
	t.Helper()
	authn, err := auth.NewEphemeral(0)
	require.NoError(t, err)
	store := game.NewMemoryStore()
	return &API{
		Logger:      logrus.New(),
		Auth:        authn,
		Stats:       store,
		Invitations: store,
		Now:         func() time.Time { return now },
	}, store
}

func authedRequest(t *testing.T, api *API, path string, userID uuid.UUID) *http.Request {
	t.Helper()
	token, err := api.Auth.CreateJWT(auth.Identity{UserID: userID, Username: "alice"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Cookie", "theme=dark; "+auth.CookieName+"="+token)
	return req
}

func TestStatsHandler(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api, store := newTestAPI(t, now)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	api.StatsHandler(rr, authedRequest(t, api, "/bombchip/api/stats", userID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var empty models.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &empty))
	assert.Zero(t, empty.TotalGames)

	require.NoError(t, store.RecordGameResult(context.Background(), []models.GameResult{{UserID: userID, Won: true, ChipsRevealed: 5}}, now))

	rr = httptest.NewRecorder()
	api.StatsHandler(rr, authedRequest(t, api, "/bombchip/api/stats", userID))
	require.Equal(t, http.StatusOK, rr.Code)
	var st models.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 5, st.ChipsRevealed)
}

func TestAPIRequiresSession(t *testing.T) {
	api, _ := newTestAPI(t, time.Now())

	rr := httptest.NewRecorder()
	api.StatsHandler(rr, httptest.NewRequest(http.MethodGet, "/bombchip/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/bombchip/api/invitations", nil)
	req.Header.Set("Cookie", auth.CookieName+"=garbage")
	rr = httptest.NewRecorder()
	api.InvitationsHandler(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = authedRequest(t, api, "/bombchip/api/stats", uuid.New())
	req.Method = http.MethodPost
	rr = httptest.NewRecorder()
	api.StatsHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestInvitationsHandlerExpiresOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api, store := newTestAPI(t, now)
	ctx := context.Background()
	to := uuid.New()

	live := &models.Invitation{
		ID: uuid.New(), From: uuid.New(), To: to, GameID: uuid.New(), GameType: game.GameTypeBombChip,
		RoomCode: "ABCDEF", Status: models.InvitationPending,
		CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute),
	}
	overdue := &models.Invitation{
		ID: uuid.New(), From: uuid.New(), To: to, GameID: uuid.New(), GameType: game.GameTypeBombChip,
		RoomCode: "GHJKLM", Status: models.InvitationPending,
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, store.CreateInvitation(ctx, live))
	require.NoError(t, store.CreateInvitation(ctx, overdue))

	rr := httptest.NewRecorder()
	api.InvitationsHandler(rr, authedRequest(t, api, "/bombchip/api/invitations", to))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var invs []models.Invitation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &invs))
	require.Len(t, invs, 1)
	assert.Equal(t, live.ID, invs[0].ID)

	pending, err := store.HasPendingInvitation(ctx, overdue.From, to, overdue.GameID)
	require.NoError(t, err)
	assert.False(t, pending, "overdue invitation is marked expired")
}

func TestInvitationsHandlerEmptyList(t *testing.T) {
	api, _ := newTestAPI(t, time.Now())
	rr := httptest.NewRecorder()
	api.InvitationsHandler(rr, authedRequest(t, api, "/bombchip/api/invitations", uuid.New()))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("auth_token=abc", "auth_token"))
	assert.Equal(t, "abc", extractCookieToken("a=1; auth_token=abc; b=2", "auth_token"))
	assert.Equal(t, "", extractCookieToken("other_auth_token=abc", "auth_token"))
	assert.Equal(t, "", extractCookieToken("", "auth_token"))
}

func TestRateLimitKey(t *testing.T) {
	api, _ := newTestAPI(t, time.Now())
	userID := uuid.New()
	keyFn := RateLimitKey(api.Auth)

	assert.Equal(t, "user:"+userID.String(), keyFn(authedRequest(t, api, "/", userID)))
	assert.Equal(t, "", keyFn(httptest.NewRequest(http.MethodGet, "/", nil)))
}
