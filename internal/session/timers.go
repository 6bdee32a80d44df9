// internal/session/timers.go
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/sirupsen/logrus"
)

var errStaleTimer = errors.New("stale move timer")

// scheduleDeletion (re)starts the eviction countdown for a game. A final eviction is
// never replaced by a cancellable one.
func (h *Hub) scheduleDeletion(gameID string, final bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if d := h.deletions[gameID]; d != nil {
		if d.final && !final {
			return
		}
		d.timer.Stop()
	}
	d := &pendingDeletion{final: final}
	d.timer = time.AfterFunc(h.opts.DisconnectGrace, func() { h.evict(gameID, d) })
	h.deletions[gameID] = d
	h.logger.WithFields(logrus.Fields{
		"game_id": gameID,
		"final":   final,
		"grace":   h.opts.DisconnectGrace,
	}).Info("game scheduled for deletion")
}

// cancelDeletion stops a pending disconnect eviction.
func (h *Hub) cancelDeletion(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d := h.deletions[gameID]; d != nil && !d.final {
		d.timer.Stop()
		delete(h.deletions, gameID)
		h.logger.WithField("game_id", gameID).Info("pending deletion cancelled")
	}
}

func (h *Hub) evict(gameID string, d *pendingDeletion) {
	removed := h.store.DeleteIf(gameID, func(st *game.GameState) bool {
		return st.Status == game.StatusComplete || nobodyConnected(st)
	})

	h.mu.Lock()
	if h.deletions[gameID] == d {
		delete(h.deletions, gameID)
	}
	if removed {
		for c := range h.rooms[gameID] {
			delete(h.memberships[c], gameID)
		}
		delete(h.rooms, gameID)
		h.stopMoveTimerLocked(gameID)
		delete(h.finished, gameID)
		delete(h.actionSeq, gameID)
	}
	h.mu.Unlock()

	if removed {
		h.logger.WithField("game_id", gameID).Info("game deleted")
	}
}

// armMoveTimer replaces the game's move timer with one for the current turn.
func (h *Hub) armMoveTimer(st *game.GameState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// moves that keep the turn, like a peek, leave the running timer alone
	if h.moveTimers[st.ID] != nil && h.moveSeq[st.ID] == st.TurnSeq && st.Status == game.StatusActive {
		return
	}
	h.stopMoveTimerLocked(st.ID)
	if h.closed || !h.opts.EnforceMoveTimer || st.Status != game.StatusActive || st.Settings.TimePerMove <= 0 {
		return
	}
	gameID, seq := st.ID, st.TurnSeq
	d := time.Duration(st.Settings.TimePerMove) * h.opts.MoveTimeUnit
	h.moveSeq[gameID] = seq
	h.moveTimers[gameID] = time.AfterFunc(d, func() { h.moveTimeout(gameID, seq) })
}

func (h *Hub) stopMoveTimerLocked(gameID string) {
	if t := h.moveTimers[gameID]; t != nil {
		t.Stop()
		delete(h.moveTimers, gameID)
		delete(h.moveSeq, gameID)
	}
}

// moveTimeout plays the forced move if the turn the timer was armed for is still
// current.
func (h *Hub) moveTimeout(gameID string, seq int) {
	var actor uuid.UUID
	_, err := h.store.Update(gameID, func(cur *game.GameState) (*game.GameState, error) {
		if cur.TurnSeq != seq || cur.Status != game.StatusActive {
			return nil, errStaleTimer
		}
		actor = cur.CurrentPlayer
		return game.TimeoutMove(cur)
	}, func(next *game.GameState) {
		h.logger.WithFields(logrus.Fields{"game_id": gameID, "player": actor}).Info("move timed out")
		h.afterMove(next, actor, "timeout", nil)
	})
	if err != nil && !errors.Is(err, errStaleTimer) && !errors.Is(err, game.ErrGameNotFound) {
		h.logger.WithField("game_id", gameID).Warnf("forced move failed: %v", err)
	}
}
