package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 6, s.CardsPerPlayer)
	assert.Equal(t, DeckStandard36, s.DeckType)
	assert.Equal(t, 30, s.TimePerMove)
	assert.True(t, s.AllowTransfer)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(map[string]interface{}{
		"cardsPerPlayer": float64(8),
		"allowTransfer":  false,
		"stake":          float64(50),
		"timePerMove":    nil,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, s.CardsPerPlayer)
	assert.False(t, s.AllowTransfer)
	assert.Equal(t, int64(50), s.Stake)
	assert.Equal(t, 30, s.TimePerMove, "nil keeps the default")

	s, err = ParseSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestParseSettingsRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"fractional cards":  {"cardsPerPlayer": 6.5},
		"string cards":      {"cardsPerPlayer": "6"},
		"too many cards":    {"cardsPerPlayer": float64(18)},
		"zero cards":        {"cardsPerPlayer": float64(0)},
		"unknown deck":      {"deckType": "standard52"},
		"non-string deck":   {"deckType": 52},
		"negative timer":    {"timePerMove": float64(-1)},
		"negative stake":    {"stake": float64(-10)},
		"non-bool transfer": {"allowTransfer": "yes"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings(raw)
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestSettingsUpdateKeepsAbsentKeys(t *testing.T) {
	s := DefaultSettings()
	s.AllowPeek = true
	require.NoError(t, s.Update(map[string]interface{}{"timePerMove": 10}))
	assert.Equal(t, 10, s.TimePerMove)
	assert.True(t, s.AllowPeek)
	assert.Equal(t, 6, s.CardsPerPlayer)
}
