// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/durak/internal/middleware"
	"github.com/jason-s-yu/durak/internal/session"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol game clients must request.
const Subprotocol = "durak"

const (
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
	maxMessageBytes = 16 << 10
)

// GameWSHandler upgrades the HTTP connection to a game websocket. Every game the
// player creates or joins is driven over this one connection.
func GameWSHandler(logger *logrus.Logger, gs *GameServer, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the guest cookie has to go out with the upgrade response
		identity, identityErr := EnsureIdentity(w, r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client %s connected with invalid subprotocol: %q", r.RemoteAddr, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'durak' subprotocol.")
			return
		}
		if identityErr != nil {
			logger.Warnf("Identity failed for %s: %v", r.RemoteAddr, identityErr)
			c.Close(InvalidAuthTokenError, "Authentication failed.")
			return
		}
		c.SetReadLimit(maxMessageBytes)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		client := session.NewClient(identity.ID, identity.Name, gs.ClientBuffer)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeEvents(ctx, c, client, logger)
			// a dead writer means a dead connection
			cancel()
		}()

		readErr := readCommands(ctx, c, client, gs.Hub, logger)

		gs.Hub.Disconnect(client)
		cancel()
		<-writerDone
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readCommands decodes client frames and runs each through the hub until the
// connection fails or ctx ends.
func readCommands(ctx context.Context, c *websocket.Conn, client *session.Client, hub *session.Hub, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from player %s. Ignoring.", msgType, client.PlayerID)
			continue
		}

		var cmd session.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.WithField("player", client.PlayerID).Debugf("invalid JSON: %v", err)
			client.Send(session.ErrorEvent("", "Invalid JSON format."))
			continue
		}
		hub.Handle(client, cmd)
	}
}

// writeEvents drains the client's queue onto the socket and keeps the connection
// alive with pings.
func writeEvents(ctx context.Context, c *websocket.Conn, client *session.Client, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case ev := <-client.Out():
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c, ev)
			cancel()
			if err != nil {
				logger.WithField("player", client.PlayerID).Warnf("Failed to write %s event: %v", ev.Type, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("player", client.PlayerID).Debugf("ping failed: %v", err)
				return
			}
		}
	}
}
