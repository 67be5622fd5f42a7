package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/lobby"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server *httptest.Server
	authn  *auth.Authenticator
	conns  *lobby.ConnectionManager
	store  *game.MemoryStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	authn, err := auth.NewEphemeral(0)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	conns := lobby.NewConnectionManager()
	store := game.NewMemoryStore()
	ctrl := game.NewController(game.Options{
		Store:    store,
		Rooms:    lobby.NewRoomRegistry(),
		Notifier: conns,
		Logger:   logger,
	})

	srv := httptest.NewServer(BombChipWSHandler(WSDeps{
		Logger:         logger,
		Auth:           authn,
		Controller:     ctrl,
		Connections:    conns,
		OriginPatterns: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return &wsFixture{server: srv, authn: authn, conns: conns, store: store}
}

func (f *wsFixture) dial(t *testing.T, ctx context.Context, name string) (*websocket.Conn, uuid.UUID) {
	t.Helper()
	id := auth.Identity{UserID: uuid.New(), Username: name}
	token, err := f.authn.CreateJWT(id)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   http.Header{"Cookie": {auth.CookieName + "=" + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c, id.UserID
}

func send(t *testing.T, ctx context.Context, c *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"type": typ, "payload": payload})
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// expect reads frames until one of type typ arrives.
func expect(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) game.Event {
	t.Helper()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var ev game.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestWSRejectsMissingSession(t *testing.T) {
	f := newWSFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{subprotocol}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSPingAndInvalidFrame(t *testing.T) {
	f := newWSFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _ := f.dial(t, ctx, "alice")
	send(t, ctx, c, game.EventPing, nil)
	expect(t, ctx, c, game.EventPong)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	ev := expect(t, ctx, c, game.EventError)
	assert.Equal(t, "Invalid JSON format", ev.Payload["message"])

	send(t, ctx, c, "room:explode", nil)
	ev = expect(t, ctx, c, game.EventError)
	assert.Equal(t, "Unknown event type: room:explode", ev.Payload["message"])
}

func TestWSRoomFlowAndDisconnectLeaves(t *testing.T) {
	f := newWSFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host, _ := f.dial(t, ctx, "alice")
	send(t, ctx, host, game.EventRoomCreate, map[string]int{"gridSize": 3, "maxPlayers": 2})
	joined := expect(t, ctx, host, game.EventRoomJoined)
	code, _ := joined.Payload["roomCode"].(string)
	require.True(t, game.IsRoomCode(code), code)

	guest, guestID := f.dial(t, ctx, "bob")
	send(t, ctx, guest, game.EventRoomJoin, map[string]string{"roomCode": strings.ToLower(code)})
	expect(t, ctx, guest, game.EventRoomJoined)

	pj := expect(t, ctx, host, game.EventRoomPlayerJoined)
	assert.EqualValues(t, 2, pj.Payload["playerCount"])

	require.NoError(t, guest.Close(websocket.StatusNormalClosure, "bye"))

	left := expect(t, ctx, host, game.EventRoomPlayerLeft)
	assert.Equal(t, guestID.String(), left.Payload["userId"])
	assert.EqualValues(t, 1, left.Payload["playerCount"])

	g, err := f.store.GameByRoomCode(ctx, code)
	require.NoError(t, err)
	assert.Len(t, g.Players, 1)
}

func TestWSSecondTabDoesNotLeave(t *testing.T) {
	f := newWSFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := auth.Identity{UserID: uuid.New(), Username: "alice"}
	token, err := f.authn.CreateJWT(id)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	opts := &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   http.Header{"Cookie": {auth.CookieName + "=" + token}},
	}

	first, _, err := websocket.Dial(ctx, url, opts)
	require.NoError(t, err)
	defer first.Close(websocket.StatusNormalClosure, "")
	second, _, err := websocket.Dial(ctx, url, opts)
	require.NoError(t, err)

	send(t, ctx, first, game.EventRoomCreate, nil)
	joined := expect(t, ctx, first, game.EventRoomJoined)
	code, _ := joined.Payload["roomCode"].(string)

	require.NoError(t, second.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return f.conns.Count(id.UserID) == 1 }, 2*time.Second, 10*time.Millisecond)

	g, err := f.store.GameByRoomCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, g.IsMember(id.UserID))
}
