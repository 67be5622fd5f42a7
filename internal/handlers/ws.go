// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/lobby"
	"github.com/jason-s-yu/bombchip/internal/metrics"
	"github.com/jason-s-yu/bombchip/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	subprotocol    = "bombchip"
	outboundBuffer = 64
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
	leaveTimeout   = 10 * time.Second
)

// frame is the envelope of every client message.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSDeps bundles what the websocket handler needs.
type WSDeps struct {
	Logger         *logrus.Logger
	Auth           *auth.Authenticator
	Controller     *game.Controller
	Connections    *lobby.ConnectionManager
	Metrics        *metrics.Metrics
	OriginPatterns []string
}

// BombChipWSHandler upgrades authenticated requests to the bombchip event
// protocol. Unauthenticated requests are rejected before the upgrade.
func BombChipWSHandler(d WSDeps) http.HandlerFunc {
	logger := d.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identityFromRequest(r, d.Auth)
		if err != nil {
			logger.WithField("remote", r.RemoteAddr).WithError(err).Debug("rejected websocket handshake")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: d.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(BadSubprotocolError, "client must speak the bombchip subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := lobby.NewConnection(id.UserID, id.Username, cancel, outboundBuffer, logger)
		caller := game.Caller{UserID: id.UserID, Username: id.Username}
		d.Connections.Add(conn)
		d.Metrics.SetConnections(d.Connections.Stats())
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, id.UserID, conn.ID)

		for _, ev := range d.Controller.Connected(ctx, caller) {
			conn.Write(ev)
		}

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, d.Controller, caller, conn, logger)
		closedByServer := ctx.Err() != nil
		cancel()

		last := d.Connections.Remove(conn)
		d.Metrics.SetConnections(d.Connections.Stats())
		if last {
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), leaveTimeout)
			d.Controller.Disconnected(leaveCtx, caller)
			leaveCancel()
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, id.UserID, conn.ID, readErr)

		if closedByServer {
			c.Close(websocket.StatusGoingAway, "connection closed by server")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes client frames and runs them through the controller until
// the connection closes. A clean close returns nil.
func readPump(ctx context.Context, c *websocket.Conn, ctrl *game.Controller, caller game.Caller, conn *lobby.Connection, logger *logrus.Logger) error {
	log := logger.WithFields(logrus.Fields{"user": caller.UserID, "conn": conn.ID})
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			log.Warnf("received non-text message type %d, ignoring", typ)
			continue
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Type == "" {
			log.WithError(err).Debug("invalid frame")
			conn.WriteError("Invalid JSON format")
			continue
		}

		for _, ev := range ctrl.Handle(ctx, caller, f.Type, f.Payload) {
			conn.Write(ev)
		}
	}
}

// writePump drains the connection's outbound queue and keeps the socket alive
// with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	log := logger.WithFields(logrus.Fields{"user": conn.UserID, "conn": conn.ID})

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).Warnf("failed to marshal outgoing %s", ev.Type)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.WithError(err).Warn("failed to write to websocket")
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingInterval/2)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("ping failed, assuming disconnect")
				conn.Cancel()
				return
			}
		}
	}
}
