// internal/settlement/settlement.go
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Request hands a finished match over for payout. MatchID is the idempotency key;
// GameID is the room code and may repeat across matches.
type Request struct {
	MatchID     uuid.UUID `json:"match_id"`
	GameID      string    `json:"game_id"`
	WinnerID    uuid.UUID `json:"winner_id"`
	LoserID     uuid.UUID `json:"loser_id"`
	Stake       int64     `json:"stake"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate rejects requests no settler could act on.
func (r Request) Validate() error {
	switch {
	case r.MatchID == uuid.Nil:
		return errors.New("settlement request missing match id")
	case r.GameID == "":
		return errors.New("settlement request missing game id")
	case r.WinnerID == uuid.Nil || r.LoserID == uuid.Nil:
		return errors.New("settlement request missing a player")
	case r.WinnerID == r.LoserID:
		return errors.New("settlement winner and loser are the same player")
	case r.Stake < 0:
		return errors.New("settlement stake is negative")
	}
	return nil
}

// Receipt is what a settler reports back for a processed request.
type Receipt struct {
	MatchID      uuid.UUID `json:"match_id"`
	GameID       string    `json:"game_id"`
	SettlementID uuid.UUID `json:"settlement_id"`
	// Duplicate is set when the match had already been settled; nothing moved.
	Duplicate    bool      `json:"duplicate"`
	WinnerRating int       `json:"winner_rating"`
	LoserRating  int       `json:"loser_rating"`
	SettledAt    time.Time `json:"settled_at"`
}

// Settler moves the stake and records the result of one match. Implementations must
// be idempotent on Request.MatchID.
type Settler interface {
	Settle(ctx context.Context, req Request) (Receipt, error)
}

// DeadLetter is a request the worker gave up on.
type DeadLetter struct {
	Request Request   `json:"request"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Queue carries requests from the game server to the settlement worker.
type Queue interface {
	Publish(ctx context.Context, req Request) error
	// Pop waits up to timeout for the next request. ok is false when none arrived.
	Pop(ctx context.Context, timeout time.Duration) (req Request, ok bool, err error)
	DeadLetter(ctx context.Context, dl DeadLetter) error
}
