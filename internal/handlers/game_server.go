// internal/handlers/game_server.go
package handlers

import (
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/session"
	"github.com/sirupsen/logrus"
)

// GameServer bundles the registry and the hub the HTTP handlers work against.
type GameServer struct {
	GameStore *game.GameStore
	Hub       *session.Hub
	Logger    *logrus.Logger

	// ClientBuffer is the outbound queue length of each websocket.
	ClientBuffer int
}

func NewGameServer(store *game.GameStore, hub *session.Hub, logger *logrus.Logger) *GameServer {
	return &GameServer{
		GameStore:    store,
		Hub:          hub,
		Logger:       logger,
		ClientBuffer: session.DefaultClientBuffer,
	}
}
