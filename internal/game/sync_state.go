// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/models"
)

// PublicPlayer is what everyone in the room may know about a seat.
type PublicPlayer struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	CardCount   int       `json:"cardCount"`
	IsAttacker  bool      `json:"isAttacker"`
	IsConnected bool      `json:"isConnected"`
	Peeked      bool      `json:"peeked"`

	// RevealedCards is only filled when the game allows peeking.
	RevealedCards []models.Card `json:"revealedCards,omitempty"`
}

// PublicState is the room-wide view of a match. It never carries hands.
type PublicState struct {
	GameID        string             `json:"gameId"`
	Status        Status             `json:"status"`
	Players       []PublicPlayer     `json:"players"`
	TableCards    []models.TableCard `json:"tableCards"`
	CurrentPlayer uuid.UUID          `json:"currentPlayer"`
	Trump         models.Suit        `json:"trump"`
	DeckSize      int                `json:"deckSize"`
	DiscardSize   int                `json:"discardSize"`
	Winner        *uuid.UUID         `json:"winner,omitempty"`
	Settings      Settings           `json:"settings"`
}

// PrivateHand is the per-connection view of a player's own cards.
type PrivateHand struct {
	GameID   string        `json:"gameId"`
	Cards    []models.Card `json:"cards"`
	Playable []uuid.UUID   `json:"playable"`
	CanPlay  bool          `json:"canPlay"`
}

// PlayerView is the full state sent to one player on create/join: the public view
// plus their own hand and the chat log.
type PlayerView struct {
	PublicState
	Hand PrivateHand          `json:"hand"`
	Chat []models.ChatMessage `json:"chat"`
}

// PublicView builds the redacted room view of s.
func PublicView(s *GameState) PublicState {
	view := PublicState{
		GameID:        s.ID,
		Status:        s.Status,
		Players:       make([]PublicPlayer, 0, len(s.Players)),
		TableCards:    s.tableCopy(),
		CurrentPlayer: s.CurrentPlayer,
		Trump:         s.Trump,
		DeckSize:      len(s.Deck),
		DiscardSize:   len(s.Discard),
		Settings:      s.Settings,
	}
	if s.HasWinner() {
		w := s.Winner
		view.Winner = &w
	}
	for _, p := range s.Players {
		pp := PublicPlayer{
			ID:          p.ID,
			Name:        p.Name,
			CardCount:   len(p.Cards),
			IsAttacker:  p.IsAttacker,
			IsConnected: p.IsConnected,
			Peeked:      p.Peeked,
		}
		if s.Settings.AllowPeek && len(p.RevealedCards) > 0 {
			pp.RevealedCards = append([]models.Card{}, p.RevealedCards...)
		}
		view.Players = append(view.Players, pp)
	}
	return view
}

// HandView builds the private hand view for playerID. The bool is false if the
// player is not seated in s.
func HandView(s *GameState, playerID uuid.UUID) (PrivateHand, bool) {
	p := s.Player(playerID)
	if p == nil {
		return PrivateHand{}, false
	}
	hand := PrivateHand{
		GameID:   s.ID,
		Cards:    append([]models.Card{}, p.Cards...),
		Playable: []uuid.UUID{},
		CanPlay:  s.Status == StatusActive && s.CurrentPlayer == playerID,
	}
	for _, c := range GetPlayableCards(s, playerID) {
		hand.Playable = append(hand.Playable, c.ID)
	}
	return hand, true
}

// ViewFor builds the full view of s for playerID.
func ViewFor(s *GameState, playerID uuid.UUID) (PlayerView, bool) {
	hand, ok := HandView(s, playerID)
	if !ok {
		return PlayerView{}, false
	}
	return PlayerView{
		PublicState: PublicView(s),
		Hand:        hand,
		Chat:        append([]models.ChatMessage{}, s.Chat...),
	}, true
}
