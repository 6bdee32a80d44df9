package models

import "github.com/google/uuid"

// Player is one of the two seats in a match.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Cards       []Card    `json:"cards"`
	IsAttacker  bool      `json:"isAttacker"`
	IsConnected bool      `json:"isConnected"`

	// RevealedCards are cards of this hand the opponent has peeked at. A card drops
	// out once it leaves the hand.
	RevealedCards []Card `json:"revealedCards,omitempty"`
	// Peeked is set once the player has used their peek in this match.
	Peeked bool `json:"peeked"`
}

// Clone returns a copy that shares no slices with p.
func (p Player) Clone() Player {
	out := p
	out.Cards = append([]Card{}, p.Cards...)
	if p.RevealedCards != nil {
		out.RevealedCards = append([]Card(nil), p.RevealedCards...)
	}
	return out
}

// Unreveal drops the card with the given id from RevealedCards.
func (p *Player) Unreveal(cardID uuid.UUID) {
	for i, c := range p.RevealedCards {
		if c.ID == cardID {
			p.RevealedCards = append(p.RevealedCards[:i], p.RevealedCards[i+1:]...)
			return
		}
	}
}

// CardIndex returns the index of the card with the given id in the hand, or -1.
func (p Player) CardIndex(cardID uuid.UUID) int {
	for i, c := range p.Cards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}
