// internal/game/deck.go
package game

import (
	"math/rand/v2"

	"github.com/jason-s-yu/durak/internal/models"
)

// DeckSize is the number of cards in a standard36 deck.
const DeckSize = 36

// NewDeck returns the 36 cards of the deck in suit-major, rank-ascending order.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			deck = append(deck, models.NewCard(suit, rank))
		}
	}
	return deck
}

// Shuffle permutes deck in place with a Fisher-Yates shuffle drawn from r.
// A nil r uses the runtime's randomly seeded source.
func Shuffle(deck []models.Card, r *rand.Rand) {
	swap := func(i, j int) { deck[i], deck[j] = deck[j], deck[i] }
	if r == nil {
		rand.Shuffle(len(deck), swap)
		return
	}
	r.Shuffle(len(deck), swap)
}

// GenerateDeck builds a fresh, shuffled deck.
func GenerateDeck() []models.Card {
	deck := NewDeck()
	Shuffle(deck, nil)
	return deck
}

// DealCards takes the first n cards of deck. If the deck is short it deals what is
// left; it never fails. Neither returned slice aliases deck.
func DealCards(deck []models.Card, n int) (dealt, remaining []models.Card) {
	if n < 0 {
		n = 0
	}
	if n > len(deck) {
		n = len(deck)
	}
	dealt = append([]models.Card{}, deck[:n]...)
	remaining = append([]models.Card{}, deck[n:]...)
	return dealt, remaining
}
