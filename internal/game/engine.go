// internal/game/engine.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/models"
)

// now is swapped in tests.
var now = time.Now

// CreateGame builds a waiting match with a freshly shuffled deck. The creator is dealt
// a hand, attacks first and holds the move. The trump is the suit of the last card
// left in the deck.
func CreateGame(id string, creatorID uuid.UUID, creatorName string, settings Settings) (*GameState, error) {
	return createGameWithDeck(id, creatorID, creatorName, settings, GenerateDeck())
}

func createGameWithDeck(id string, creatorID uuid.UUID, creatorName string, settings Settings, deck []models.Card) (*GameState, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if creatorID == uuid.Nil {
		return nil, fmt.Errorf("%w: creator id is required", ErrPlayerNotFound)
	}
	cards, remaining := DealCards(deck, settings.CardsPerPlayer)
	if len(remaining) == 0 {
		return nil, fmt.Errorf("%w: deck too small to choose a trump", ErrInvalidSettings)
	}

	ts := now()
	return &GameState{
		ID:      id,
		MatchID: uuid.New(),
		Players: []models.Player{{
			ID:          creatorID,
			Name:        creatorName,
			Cards:       cards,
			IsAttacker:  true,
			IsConnected: true,
		}},
		CurrentPlayer: creatorID,
		Trump:         remaining[len(remaining)-1].Suit,
		Deck:          remaining,
		TableCards:    []models.TableCard{},
		Discard:       []models.Card{},
		Status:        StatusWaiting,
		Settings:      settings,
		Chat:          []models.ChatMessage{},
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}, nil
}

// AddPlayerToGame seats the second player as defender, deals their hand and starts
// the match.
func AddPlayerToGame(state *GameState, playerID uuid.UUID, playerName string) (*GameState, error) {
	if len(state.Players) >= MaxPlayers {
		return nil, ErrGameFull
	}
	if state.Status != StatusWaiting {
		return nil, ErrGameAlreadyStarted
	}
	if state.PlayerIndex(playerID) >= 0 {
		return nil, ErrAlreadyJoined
	}

	next := state.Clone()
	cards, remaining := DealCards(next.Deck, next.Settings.CardsPerPlayer)
	next.Players = append(next.Players, models.Player{
		ID:          playerID,
		Name:        playerName,
		Cards:       cards,
		IsAttacker:  false,
		IsConnected: true,
	})
	next.Deck = remaining
	next.Status = StatusActive
	next.TurnSeq++
	next.UpdatedAt = now()
	return next, nil
}

// checkPlay explains why a card cannot be played, or returns nil when it can.
func checkPlay(state *GameState, playerID, cardID uuid.UUID) error {
	if state.Status != StatusActive {
		return ErrGameNotActive
	}
	if state.CurrentPlayer != playerID {
		return ErrNotYourTurn
	}
	player := state.Player(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	idx := player.CardIndex(cardID)
	if idx < 0 {
		return ErrCardNotFound
	}
	card := player.Cards[idx]

	if player.IsAttacker {
		if len(state.TableCards) == 0 {
			return nil
		}
		if !state.Settings.AllowTransfer {
			return fmt.Errorf("adding cards to the table is disabled")
		}
		if !state.ranksOnTable()[card.Rank] {
			return fmt.Errorf("rank %s is not on the table", card.Rank)
		}
		return nil
	}

	i := state.firstUndefended()
	if i < 0 {
		return fmt.Errorf("no attack to defend")
	}
	if !card.Beats(state.TableCards[i].Attacking, state.Trump) {
		return fmt.Errorf("%s does not beat %s", card, state.TableCards[i].Attacking)
	}
	return nil
}

// CanPlayCard reports whether playerID may play cardID now. It never fails; every
// unmet precondition yields false.
func CanPlayCard(state *GameState, playerID, cardID uuid.UUID) bool {
	return checkPlay(state, playerID, cardID) == nil
}

// PlayCard moves a card from the player's hand to the table. An attacker opens a new
// table entry; a defender covers the oldest uncovered attack. The move then passes to
// the opponent.
func PlayCard(state *GameState, playerID, cardID uuid.UUID) (*GameState, error) {
	if err := checkPlay(state, playerID, cardID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}

	next := state.Clone()
	pi := next.PlayerIndex(playerID)
	player := &next.Players[pi]
	ci := player.CardIndex(cardID)
	card := player.Cards[ci]
	player.Cards = append(player.Cards[:ci], player.Cards[ci+1:]...)
	player.Unreveal(cardID)

	if player.IsAttacker {
		next.TableCards = append(next.TableCards, models.TableCard{Attacking: card})
	} else {
		i := next.firstUndefended()
		next.TableCards[i].Defending = &card
	}

	next.CurrentPlayer = next.Players[1-pi].ID
	next.TurnSeq++
	next.UpdatedAt = now()
	checkWinner(next, pi)
	return next, nil
}

// requireTurn validates the common preconditions of the turn-ending operations.
func requireTurn(state *GameState, playerID uuid.UUID) (int, error) {
	if state.Status != StatusActive {
		return -1, ErrGameNotActive
	}
	pi := state.PlayerIndex(playerID)
	if pi < 0 {
		return -1, ErrPlayerNotFound
	}
	if state.CurrentPlayer != playerID {
		return -1, ErrNotYourTurn
	}
	return pi, nil
}

// TakeCards lets the defender pick up every card on the table. Both hands are
// refilled, taker first; the other player attacks next and holds the move.
func TakeCards(state *GameState, playerID uuid.UUID) (*GameState, error) {
	pi, err := requireTurn(state, playerID)
	if err != nil {
		return nil, err
	}
	if state.Players[pi].IsAttacker {
		return nil, fmt.Errorf("%w: attacker cannot take cards", ErrIllegalMove)
	}
	if len(state.TableCards) == 0 {
		return nil, fmt.Errorf("%w: no cards on table", ErrIllegalMove)
	}

	next := state.Clone()
	taker := &next.Players[pi]
	opponent := &next.Players[1-pi]

	for _, tc := range next.TableCards {
		taker.Cards = append(taker.Cards, tc.Attacking)
	}
	for _, tc := range next.TableCards {
		if tc.Defending != nil {
			taker.Cards = append(taker.Cards, *tc.Defending)
		}
	}
	next.TableCards = []models.TableCard{}

	refill(next, pi)
	refill(next, 1-pi)

	taker.IsAttacker = false
	opponent.IsAttacker = true
	next.CurrentPlayer = opponent.ID
	next.TurnSeq++
	next.UpdatedAt = now()
	checkWinner(next, pi)
	return next, nil
}

// EndTurn closes a successfully defended exchange: the table is discarded, both hands
// are refilled (acting player first), roles flip and the new attacker holds the move.
// The attacker may end a turn once the table is non-empty, the defender once every
// attack is covered.
func EndTurn(state *GameState, playerID uuid.UUID) (*GameState, error) {
	pi, err := requireTurn(state, playerID)
	if err != nil {
		return nil, err
	}
	if state.Players[pi].IsAttacker {
		if len(state.TableCards) == 0 {
			return nil, fmt.Errorf("%w: no cards on table", ErrIllegalMove)
		}
	} else if !state.allDefended() {
		return nil, fmt.Errorf("%w: not all attacks defended", ErrIllegalMove)
	}

	next := state.Clone()
	for _, tc := range next.TableCards {
		next.Discard = append(next.Discard, tc.Attacking)
		if tc.Defending != nil {
			next.Discard = append(next.Discard, *tc.Defending)
		}
	}
	next.TableCards = []models.TableCard{}

	refill(next, pi)
	refill(next, 1-pi)

	next.Players[pi].IsAttacker = !next.Players[pi].IsAttacker
	next.Players[1-pi].IsAttacker = !next.Players[pi].IsAttacker
	next.CurrentPlayer = next.Attacker().ID
	next.TurnSeq++
	next.UpdatedAt = now()
	checkWinner(next, pi)
	return next, nil
}

// refill tops the hand at seat i up to CardsPerPlayer from the front of the deck.
func refill(s *GameState, i int) {
	need := s.Settings.CardsPerPlayer - len(s.Players[i].Cards)
	if need <= 0 {
		return
	}
	dealt, remaining := DealCards(s.Deck, need)
	s.Players[i].Cards = append(s.Players[i].Cards, dealt...)
	s.Deck = remaining
}

// checkWinner completes the match once the deck is empty and a player has no cards.
// The acting seat is checked first.
func checkWinner(s *GameState, acting int) {
	if s.Status != StatusActive || len(s.Deck) > 0 || len(s.Players) < MaxPlayers {
		return
	}
	for _, i := range []int{acting, 1 - acting} {
		if len(s.Players[i].Cards) == 0 {
			s.Status = StatusComplete
			s.GameCompleted = true
			s.Winner = s.Players[i].ID
			return
		}
	}
}

// AddChatMessage appends a message to the chat log. Participation is checked by the
// caller.
func AddChatMessage(state *GameState, userID uuid.UUID, username, text string) *GameState {
	next := state.Clone()
	ts := now()
	next.Chat = append(next.Chat, models.ChatMessage{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		Message:   strings.TrimSpace(text),
		Timestamp: ts,
	})
	next.UpdatedAt = ts
	return next
}

// GetPlayableCards filters the player's hand through CanPlayCard.
func GetPlayableCards(state *GameState, playerID uuid.UUID) []models.Card {
	player := state.Player(playerID)
	if player == nil || state.CurrentPlayer != playerID || state.Status != StatusActive {
		return []models.Card{}
	}
	playable := []models.Card{}
	for _, c := range player.Cards {
		if CanPlayCard(state, playerID, c.ID) {
			playable = append(playable, c)
		}
	}
	return playable
}

// SetConnected records whether the player currently has a live connection.
func SetConnected(state *GameState, playerID uuid.UUID, connected bool) (*GameState, error) {
	if state.PlayerIndex(playerID) < 0 {
		return nil, ErrPlayerNotFound
	}
	next := state.Clone()
	next.Player(playerID).IsConnected = connected
	next.UpdatedAt = now()
	return next, nil
}

// PeekLimit is how many opponent cards a peek reveals.
const PeekLimit = 2

// PeekCards reveals the first PeekLimit cards of the opponent's hand to the room. Each
// player may peek once per match, at any point while it is active, and peeking does not
// pass the move.
func PeekCards(state *GameState, playerID uuid.UUID) (*GameState, error) {
	if state.Status != StatusActive {
		return nil, ErrGameNotActive
	}
	if !state.Settings.AllowPeek {
		return nil, fmt.Errorf("%w: %w", ErrIllegalMove, ErrPeekDisabled)
	}
	pi := state.PlayerIndex(playerID)
	if pi < 0 {
		return nil, ErrPlayerNotFound
	}
	if state.Players[pi].Peeked {
		return nil, fmt.Errorf("%w: %w", ErrIllegalMove, ErrAlreadyPeeked)
	}

	next := state.Clone()
	next.Players[pi].Peeked = true
	opponent := &next.Players[1-pi]
	n := min(PeekLimit, len(opponent.Cards))
	opponent.RevealedCards = append([]models.Card{}, opponent.Cards[:n]...)
	next.UpdatedAt = now()
	return next, nil
}

// TimeoutMove plays the forced move for a current player whose move time ran out.
// A defender facing an uncovered attack takes; a player with a resolved table ends the
// turn; an attacker facing an empty table leads their weakest card, non-trumps first.
func TimeoutMove(state *GameState) (*GameState, error) {
	if state.Status != StatusActive {
		return nil, ErrGameNotActive
	}
	player := state.Player(state.CurrentPlayer)
	if player == nil {
		return nil, ErrPlayerNotFound
	}
	if !player.IsAttacker {
		if !state.allDefended() {
			return TakeCards(state, player.ID)
		}
		return EndTurn(state, player.ID)
	}
	if len(state.TableCards) > 0 {
		return EndTurn(state, player.ID)
	}
	card, ok := weakestCard(player.Cards, state.Trump)
	if !ok {
		return nil, fmt.Errorf("%w: no cards to lead", ErrIllegalMove)
	}
	return PlayCard(state, player.ID, card.ID)
}

// weakestCard picks the lowest-power non-trump, falling back to the lowest trump.
func weakestCard(cards []models.Card, trump models.Suit) (models.Card, bool) {
	var best models.Card
	found := false
	for _, c := range cards {
		if !found {
			best, found = c, true
			continue
		}
		bestTrump, cTrump := best.Suit == trump, c.Suit == trump
		if bestTrump != cTrump {
			if bestTrump {
				best = c
			}
			continue
		}
		if c.Power < best.Power {
			best = c
		}
	}
	return best, found
}
