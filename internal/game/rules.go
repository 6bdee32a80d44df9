// internal/game/rules.go
package game

import "fmt"

// Deck types. Only the 36-card deck is dealt.
const (
	DeckStandard36 = "standard36"
)

// Settings is the per-match configuration chosen by the creator.
type Settings struct {
	CardsPerPlayer int    `json:"cardsPerPlayer"` // hand size refilled after every exchange; default 6
	DeckType       string `json:"deckType"`       // only "standard36"
	TimePerMove    int    `json:"timePerMove"`    // seconds per move; enforced by the session hub, not here
	AllowTransfer  bool   `json:"allowTransfer"`  // attacker may add cards whose rank is already on the table
	AllowPeek      bool   `json:"allowPeek"`      // players may see cards the opponent revealed
	Stake          int64  `json:"stake"`          // amount settled from loser to winner
}

// maxCardsPerPlayer keeps both hands plus the trump card inside the deck.
const maxCardsPerPlayer = (DeckSize - 1) / 2

// DefaultSettings returns the settings used when the creator supplies none.
func DefaultSettings() Settings {
	return Settings{
		CardsPerPlayer: 6,
		DeckType:       DeckStandard36,
		TimePerMove:    30,
		AllowTransfer:  true,
		AllowPeek:      false,
		Stake:          0,
	}
}

// Validate checks the settings are playable.
func (s Settings) Validate() error {
	if s.CardsPerPlayer < 1 || s.CardsPerPlayer > maxCardsPerPlayer {
		return fmt.Errorf("%w: cardsPerPlayer must be between 1 and %d", ErrInvalidSettings, maxCardsPerPlayer)
	}
	if s.DeckType != DeckStandard36 {
		return fmt.Errorf("%w: unsupported deckType %q", ErrInvalidSettings, s.DeckType)
	}
	if s.TimePerMove < 0 {
		return fmt.Errorf("%w: timePerMove must be non-negative", ErrInvalidSettings)
	}
	if s.Stake < 0 {
		return fmt.Errorf("%w: stake must be non-negative", ErrInvalidSettings)
	}
	return nil
}

// Update overlays the keys present in newSettings onto s. Absent or nil keys keep
// their old value. JSON numbers arrive as float64.
func (s *Settings) Update(newSettings map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newSettings[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("%w: invalid type for %s", ErrInvalidSettings, key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int64, key string) error {
		val, exists := newSettings[key]
		if !exists || val == nil {
			return nil
		}
		switch v := val.(type) {
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("%w: %s must be an integer", ErrInvalidSettings, key)
			}
			*field = int64(v)
		case int:
			*field = int64(v)
		case int64:
			*field = v
		default:
			return fmt.Errorf("%w: invalid type for %s", ErrInvalidSettings, key)
		}
		return nil
	}

	cards := int64(s.CardsPerPlayer)
	timePerMove := int64(s.TimePerMove)
	if err := assignInt(&cards, "cardsPerPlayer"); err != nil {
		return err
	}
	if err := assignInt(&timePerMove, "timePerMove"); err != nil {
		return err
	}
	if err := assignInt(&s.Stake, "stake"); err != nil {
		return err
	}
	s.CardsPerPlayer = int(cards)
	s.TimePerMove = int(timePerMove)

	if val, exists := newSettings["deckType"]; exists && val != nil {
		dt, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: invalid type for deckType", ErrInvalidSettings)
		}
		s.DeckType = dt
	}
	if err := assignBool(&s.AllowTransfer, "allowTransfer"); err != nil {
		return err
	}
	if err := assignBool(&s.AllowPeek, "allowPeek"); err != nil {
		return err
	}
	return nil
}

// ParseSettings applies the raw settings map over the defaults and validates the result.
func ParseSettings(raw map[string]interface{}) (Settings, error) {
	s := DefaultSettings()
	if err := s.Update(raw); err != nil {
		return s, err
	}
	return s, s.Validate()
}
