package models

import "github.com/google/uuid"

// Suit is one of the four card suits.
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Suits lists every suit in deck-construction order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Rank is the face value of a card in the 36-card deck.
type Rank string

const (
	Rank6     Rank = "6"
	Rank7     Rank = "7"
	Rank8     Rank = "8"
	Rank9     Rank = "9"
	Rank10    Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankAce   Rank = "A"
)

// Ranks lists every rank from weakest to strongest.
var Ranks = []Rank{Rank6, Rank7, Rank8, Rank9, Rank10, RankJack, RankQueen, RankKing, RankAce}

// RankPower is the fixed comparison ladder, 6=1 through A=9.
var RankPower = map[Rank]int{
	Rank6:     1,
	Rank7:     2,
	Rank8:     3,
	Rank9:     4,
	Rank10:    5,
	RankJack:  6,
	RankQueen: 7,
	RankKing:  8,
	RankAce:   9,
}

// Card is an immutable playing card. Cards move between deck, hands and table by value.
type Card struct {
	ID    uuid.UUID `json:"id"`
	Suit  Suit      `json:"suit"`
	Rank  Rank      `json:"rank"`
	Power int       `json:"power"`
}

// NewCard builds a card with a fresh id and the power derived from its rank.
func NewCard(suit Suit, rank Rank) Card {
	return Card{ID: uuid.New(), Suit: suit, Rank: rank, Power: RankPower[rank]}
}

// String renders the card as rank+suit initial, e.g. "10h".
func (c Card) String() string {
	if c.Suit == "" {
		return string(c.Rank)
	}
	return string(c.Rank) + string(c.Suit[0])
}

// Beats reports whether c legally covers attacking under the given trump.
// Same suit needs strictly higher power; a trump covers any non-trump.
func (c Card) Beats(attacking Card, trump Suit) bool {
	if c.Suit == attacking.Suit {
		return c.Power > attacking.Power
	}
	return c.Suit == trump && attacking.Suit != trump
}
