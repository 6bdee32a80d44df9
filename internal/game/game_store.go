package game

import (
	"fmt"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GameIDLength is the length of the random game id token.
const GameIDLength = 8

// maxIDAttempts bounds retries when a generated id collides with a live game.
const maxIDAttempts = 5

// entry holds the canonical snapshot of one game plus its writer lock.
type entry struct {
	mu    sync.Mutex
	state *GameState
}

// MutateFunc is a Rule Engine call: current snapshot in, replacement out.
type MutateFunc func(cur *GameState) (*GameState, error)

// GameStore is the registry of live matches. Writes to one game are serialized by
// that game's lock; different games never block each other.
type GameStore struct {
	mu    sync.Mutex
	games map[string]*entry

	// newID is swapped in tests.
	newID func() (string, error)
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*entry),
		newID: func() (string, error) { return gonanoid.New(GameIDLength) },
	}
}

// Create allocates a fresh id, builds the snapshot with build and stores it. Nothing
// is stored if build fails.
func (s *GameStore) Create(build func(id string) (*GameState, error)) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return nil, fmt.Errorf("could not allocate a unique game id after %d attempts", maxIDAttempts)
		}
		candidate, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("generate game id: %w", err)
		}
		if _, taken := s.games[candidate]; !taken {
			id = candidate
			break
		}
	}

	state, err := build(id)
	if err != nil {
		return nil, err
	}
	s.games[id] = &entry{state: state}
	return state, nil
}

func (s *GameStore) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.games[id]
	return e, ok
}

// GetGame returns the current snapshot of a game.
func (s *GameStore) GetGame(id string) (*GameState, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Update runs op against the current snapshot while holding the game's lock. On
// success the result replaces the stored snapshot and commit, if set, runs before the
// lock is released so notifications leave in the same order the writes happened. On
// error the stored snapshot is left untouched.
func (s *GameStore) Update(id string, op MutateFunc, commit func(next *GameState)) (*GameState, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrGameNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// the game may have been deleted while we waited for its lock
	if cur, live := s.lookup(id); !live || cur != e {
		return nil, ErrGameNotFound
	}

	next, err := op(e.state)
	if err != nil {
		return nil, err
	}
	e.state = next
	if commit != nil {
		commit(next)
	}
	return next, nil
}

// DeleteGame removes a game unconditionally.
func (s *GameStore) DeleteGame(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// DeleteIf removes a game when cond holds for its current snapshot. It reports
// whether the game was removed.
func (s *GameStore) DeleteIf(id string, cond func(*GameState) bool) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !cond(e.state) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.games[id] != e {
		return false
	}
	delete(s.games, id)
	return true
}

// ListGames returns the snapshots with the given status, oldest first.
func (s *GameStore) ListGames(status Status) []*GameState {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.games))
	for _, e := range s.games {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var out []*GameState
	for _, e := range entries {
		e.mu.Lock()
		st := e.state
		e.mu.Unlock()
		if st.Status == status {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of live games.
func (s *GameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
