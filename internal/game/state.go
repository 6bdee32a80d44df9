// internal/game/state.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/models"
)

// Status is the lifecycle stage of a match. It only moves forward:
// waiting -> active -> complete.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// MaxPlayers is the number of seats in a match.
const MaxPlayers = 2

// GameState is an immutable snapshot of one match. Engine operations never modify a
// snapshot they are given; they return a new one.
type GameState struct {
	ID string `json:"id"`
	// MatchID is unique per match. Room codes may come back around once a game has
	// been evicted; match ids never do.
	MatchID       uuid.UUID            `json:"matchId"`
	Players       []models.Player      `json:"players"`
	CurrentPlayer uuid.UUID            `json:"currentPlayer"`
	Trump         models.Suit          `json:"trump"`
	Deck          []models.Card        `json:"deck"`
	TableCards    []models.TableCard   `json:"tableCards"`
	Discard       []models.Card        `json:"discard"`
	Status        Status               `json:"status"`
	Winner        uuid.UUID            `json:"winner"`
	GameCompleted bool                 `json:"gameCompleted"`
	Settings      Settings             `json:"settings"`
	Chat          []models.ChatMessage `json:"chat"`

	// TurnSeq increments whenever the move passes or the table changes. The session
	// hub uses it to discard stale move timers.
	TurnSeq int `json:"turnSeq"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of s.
func (s *GameState) Clone() *GameState {
	out := *s
	out.Players = make([]models.Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.Clone()
	}
	out.Deck = append([]models.Card{}, s.Deck...)
	out.TableCards = s.tableCopy()
	out.Discard = append([]models.Card{}, s.Discard...)
	out.Chat = append([]models.ChatMessage{}, s.Chat...)
	return &out
}

// tableCopy copies the table, including the defending cards behind the pointers.
func (s *GameState) tableCopy() []models.TableCard {
	out := make([]models.TableCard, len(s.TableCards))
	for i, tc := range s.TableCards {
		out[i] = models.TableCard{Attacking: tc.Attacking}
		if tc.Defending != nil {
			d := *tc.Defending
			out[i].Defending = &d
		}
	}
	return out
}

// PlayerIndex returns the seat index of playerID, or -1.
func (s *GameState) PlayerIndex(playerID uuid.UUID) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns the seat of playerID, or nil.
func (s *GameState) Player(playerID uuid.UUID) *models.Player {
	if i := s.PlayerIndex(playerID); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// Opponent returns the other seat of playerID, or nil while the game has one player.
func (s *GameState) Opponent(playerID uuid.UUID) *models.Player {
	i := s.PlayerIndex(playerID)
	if i < 0 || len(s.Players) < MaxPlayers {
		return nil
	}
	return &s.Players[1-i]
}

// Attacker returns the seat that currently attacks, or nil.
func (s *GameState) Attacker() *models.Player {
	for i := range s.Players {
		if s.Players[i].IsAttacker {
			return &s.Players[i]
		}
	}
	return nil
}

// Defender returns the seat that currently defends, or nil.
func (s *GameState) Defender() *models.Player {
	if len(s.Players) < MaxPlayers {
		return nil
	}
	for i := range s.Players {
		if !s.Players[i].IsAttacker {
			return &s.Players[i]
		}
	}
	return nil
}

// HasWinner reports whether a winner has been declared.
func (s *GameState) HasWinner() bool {
	return s.Winner != uuid.Nil
}

// Loser returns the seat opposite the winner, or nil.
func (s *GameState) Loser() *models.Player {
	if !s.HasWinner() {
		return nil
	}
	return s.Opponent(s.Winner)
}

// CardCount is the number of cards across deck, hands, table and discard pile. It
// stays at DeckSize for the whole match.
func (s *GameState) CardCount() int {
	n := len(s.Deck) + len(s.Discard)
	for _, p := range s.Players {
		n += len(p.Cards)
	}
	for _, tc := range s.TableCards {
		n++
		if tc.Defended() {
			n++
		}
	}
	return n
}

// firstUndefended returns the index of the oldest attack without a defending card, or -1.
func (s *GameState) firstUndefended() int {
	for i, tc := range s.TableCards {
		if !tc.Defended() {
			return i
		}
	}
	return -1
}

// allDefended reports whether every attack on the table has been covered.
func (s *GameState) allDefended() bool {
	return s.firstUndefended() == -1
}

// ranksOnTable collects every rank on the table, attacking and defending.
func (s *GameState) ranksOnTable() map[models.Rank]bool {
	ranks := make(map[models.Rank]bool, len(s.TableCards)*2)
	for _, tc := range s.TableCards {
		ranks[tc.Attacking.Rank] = true
		if tc.Defending != nil {
			ranks[tc.Defending.Rank] = true
		}
	}
	return ranks
}
