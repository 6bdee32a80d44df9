package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, store *GameStore) (*GameState, uuid.UUID) {
	t.Helper()
	creator := uuid.New()
	g, err := store.Create(func(id string) (*GameState, error) {
		return CreateGame(id, creator, "alice", DefaultSettings())
	})
	require.NoError(t, err)
	return g, creator
}

func TestGameStoreCreateAndGet(t *testing.T) {
	store := NewGameStore()
	g, _ := newTestGame(t, store)

	assert.Len(t, g.ID, GameIDLength)
	got, ok := store.GetGame(g.ID)
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Equal(t, 1, store.Len())

	_, ok = store.GetGame("missing")
	assert.False(t, ok)
}

func TestGameStoreCreateFailureStoresNothing(t *testing.T) {
	store := NewGameStore()
	_, err := store.Create(func(id string) (*GameState, error) {
		return nil, ErrInvalidSettings
	})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, 0, store.Len())
}

func TestGameStoreRetriesIDCollision(t *testing.T) {
	store := NewGameStore()
	ids := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	store.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	first, _ := newTestGame(t, store)
	second, _ := newTestGame(t, store)
	assert.Equal(t, "aaaaaaaa", first.ID)
	assert.Equal(t, "bbbbbbbb", second.ID)

	store.newID = func() (string, error) { return "aaaaaaaa", nil }
	_, err := store.Create(func(id string) (*GameState, error) { return CreateGame(id, uuid.New(), "x", DefaultSettings()) })
	assert.Error(t, err)

	store.newID = func() (string, error) { return "", errors.New("entropy exhausted") }
	_, err = store.Create(func(id string) (*GameState, error) { return CreateGame(id, uuid.New(), "x", DefaultSettings()) })
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestGameStoreUpdate(t *testing.T) {
	store := NewGameStore()
	g, _ := newTestGame(t, store)
	joiner := uuid.New()

	var committed *GameState
	next, err := store.Update(g.ID, func(cur *GameState) (*GameState, error) {
		return AddPlayerToGame(cur, joiner, "bob")
	}, func(n *GameState) { committed = n })
	require.NoError(t, err)
	assert.Same(t, next, committed)
	assert.Equal(t, StatusActive, next.Status)

	stored, _ := store.GetGame(g.ID)
	assert.Same(t, next, stored)
	assert.Equal(t, StatusWaiting, g.Status, "old snapshot untouched")
}

func TestGameStoreUpdateErrorKeepsSnapshot(t *testing.T) {
	store := NewGameStore()
	g, creator := newTestGame(t, store)

	called := false
	_, err := store.Update(g.ID, func(cur *GameState) (*GameState, error) {
		return AddPlayerToGame(cur, creator, "alice")
	}, func(*GameState) { called = true })
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.False(t, called)

	stored, _ := store.GetGame(g.ID)
	assert.Same(t, g, stored)

	_, err = store.Update("missing", func(cur *GameState) (*GameState, error) { return cur, nil }, nil)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameStoreSerializesWriters(t *testing.T) {
	store := NewGameStore()
	g, creator := newTestGame(t, store)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(g.ID, func(cur *GameState) (*GameState, error) {
				return AddChatMessage(cur, creator, "alice", fmt.Sprintf("msg %d", i)), nil
			}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, _ := store.GetGame(g.ID)
	assert.Len(t, stored.Chat, writers, "no write is lost")
}

func TestGameStoreDelete(t *testing.T) {
	store := NewGameStore()
	g, _ := newTestGame(t, store)

	assert.False(t, store.DeleteIf(g.ID, func(s *GameState) bool { return s.Status == StatusComplete }))
	assert.Equal(t, 1, store.Len())

	assert.True(t, store.DeleteIf(g.ID, func(s *GameState) bool { return s.Status == StatusWaiting }))
	assert.Equal(t, 0, store.Len())
	assert.False(t, store.DeleteIf(g.ID, func(*GameState) bool { return true }))

	other, _ := newTestGame(t, store)
	store.DeleteGame(other.ID)
	_, ok := store.GetGame(other.ID)
	assert.False(t, ok)
	store.DeleteGame(other.ID)
}

func TestGameStoreListGames(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	defer func() { now = time.Now }()

	store := NewGameStore()
	first, _ := newTestGame(t, store)
	second, _ := newTestGame(t, store)
	third, _ := newTestGame(t, store)
	_, err := store.Update(second.ID, func(cur *GameState) (*GameState, error) {
		return AddPlayerToGame(cur, uuid.New(), "bob")
	}, nil)
	require.NoError(t, err)

	waiting := store.ListGames(StatusWaiting)
	require.Len(t, waiting, 2)
	assert.Equal(t, first.ID, waiting[0].ID)
	assert.Equal(t, third.ID, waiting[1].ID)

	active := store.ListGames(StatusActive)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	assert.Empty(t, store.ListGames(StatusComplete))
}
