package models

import (
	"time"

	"github.com/google/uuid"
)

// TableCard pairs an attacking card with the card that covered it, if any.
type TableCard struct {
	Attacking Card  `json:"attacking"`
	Defending *Card `json:"defending,omitempty"`
}

// Defended reports whether the attack has been covered.
func (tc TableCard) Defended() bool {
	return tc.Defending != nil
}

// ChatMessage is one entry of a game's append-only chat log.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
