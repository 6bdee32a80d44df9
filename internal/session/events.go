// internal/session/events.go
package session

import (
	"github.com/google/uuid"
)

// Inbound command types.
const (
	CmdCreateGame  = "create-game"
	CmdJoinGame    = "join-game"
	CmdPlayCard    = "play-card"
	CmdTakeCards   = "take-cards"
	CmdEndTurn     = "end-turn"
	CmdPeek        = "peek"
	CmdSendMessage = "send-message"
	CmdPing        = "ping"
)

// Outbound event types.
const (
	EvGameCreated       = "game-created"
	EvGameJoined        = "game-joined"
	EvGameUpdated       = "game-updated"
	EvHandUpdated       = "hand-updated"
	EvGameOver          = "game-over"
	EvNewMessage        = "new-message"
	EvError             = "error"
	EvPlayerJoined      = "player-joined"
	EvPlayerLeft        = "player-left"
	EvPlayerReconnected = "player-reconnected"
	EvPong              = "pong"
)

// Command is one message from a client.
type Command struct {
	Type        string                 `json:"type"`
	GameID      string                 `json:"gameId,omitempty"`
	CardID      string                 `json:"cardId,omitempty"`
	DisplayName string                 `json:"displayName,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
}

// Event is one message to a client. Data depends on Type: a game.PlayerView for
// game-created and game-joined, game.PublicState for game-updated, game.PrivateHand
// for hand-updated, GameOver, models.ChatMessage or Presence.
type Event struct {
	Type    string      `json:"type"`
	GameID  string      `json:"gameId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// GameOver announces the result of a match.
type GameOver struct {
	Winner uuid.UUID `json:"winner"`
	Loser  uuid.UUID `json:"loser"`
	Stake  int64     `json:"stake"`
}

// Presence announces a player arriving, leaving or coming back.
type Presence struct {
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
}

// ErrorEvent builds an error notification for gameID.
func ErrorEvent(gameID, msg string) Event {
	return Event{Type: EvError, GameID: gameID, Message: msg}
}
