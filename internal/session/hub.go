// internal/session/hub.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/cache"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/settlement"
	"github.com/sirupsen/logrus"
)

const (
	maxNameLength = 32
	// actionQueueSize bounds the records waiting for the action log writer.
	actionQueueSize = 1024
)

// ActionLogger records applied moves. cache.ActionLog implements it.
type ActionLogger interface {
	Append(ctx context.Context, rec cache.ActionRecord) error
}

// SettlementTrigger receives finished matches. settlement.Dispatcher implements it.
type SettlementTrigger interface {
	Trigger(req settlement.Request) bool
}

// Options tunes a Hub. Nil collaborators are skipped.
type Options struct {
	// DisconnectGrace is how long a game with nobody connected, or a completed game,
	// stays in the store.
	DisconnectGrace time.Duration
	// EnforceMoveTimer plays a forced move when a player exceeds timePerMove.
	EnforceMoveTimer bool
	// MoveTimeUnit scales Settings.TimePerMove. Defaults to a second.
	MoveTimeUnit     time.Duration
	MaxMessageLength int

	Settlement SettlementTrigger
	Actions    ActionLogger
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		DisconnectGrace:  10 * time.Minute,
		MoveTimeUnit:     time.Second,
		MaxMessageLength: 500,
	}
}

var errNoChange = errors.New("no change")

type pendingDeletion struct {
	timer *time.Timer
	// final marks the eviction of a completed game; reconnecting does not cancel it.
	final bool
}

// Hub turns client commands into Rule Engine calls on the store and fans the
// resulting notifications out to the connections in each game's room.
//
// Store commits run the notification code while the game's lock is held, so the hub
// never calls into the store while holding h.mu.
type Hub struct {
	store  *game.GameStore
	logger *logrus.Logger
	opts   Options

	mu          sync.Mutex
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
	deletions   map[string]*pendingDeletion
	moveTimers  map[string]*time.Timer
	moveSeq     map[string]int
	finished    map[string]bool
	actionSeq   map[string]int
	actions     chan cache.ActionRecord
	closed      bool
}

func NewHub(store *game.GameStore, logger *logrus.Logger, opts Options) *Hub {
	def := DefaultOptions()
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = def.DisconnectGrace
	}
	if opts.MoveTimeUnit <= 0 {
		opts.MoveTimeUnit = def.MoveTimeUnit
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = def.MaxMessageLength
	}
	h := &Hub{
		store:       store,
		logger:      logger,
		opts:        opts,
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		deletions:   make(map[string]*pendingDeletion),
		moveTimers:  make(map[string]*time.Timer),
		moveSeq:     make(map[string]int),
		finished:    make(map[string]bool),
		actionSeq:   make(map[string]int),
	}
	if opts.Actions != nil {
		h.actions = make(chan cache.ActionRecord, actionQueueSize)
		go h.writeActions()
	}
	return h
}

// Handle runs one command from c to completion.
func (h *Hub) Handle(c *Client, cmd Command) {
	h.logger.WithFields(logrus.Fields{
		"player":  c.PlayerID,
		"type":    cmd.Type,
		"game_id": cmd.GameID,
	}).Debug("command received")

	switch cmd.Type {
	case CmdCreateGame:
		h.createGame(c, cmd)
	case CmdJoinGame:
		h.joinGame(c, cmd)
	case CmdPlayCard:
		h.applyMove(c, cmd.GameID, cmd.Type, map[string]interface{}{"cardId": cmd.CardID},
			func(cur *game.GameState) (*game.GameState, error) {
				cardID, err := uuid.Parse(cmd.CardID)
				if err != nil {
					return nil, game.ErrCardNotFound
				}
				return game.PlayCard(cur, c.PlayerID, cardID)
			})
	case CmdTakeCards:
		h.applyMove(c, cmd.GameID, cmd.Type, nil, func(cur *game.GameState) (*game.GameState, error) {
			return game.TakeCards(cur, c.PlayerID)
		})
	case CmdEndTurn:
		h.applyMove(c, cmd.GameID, cmd.Type, nil, func(cur *game.GameState) (*game.GameState, error) {
			return game.EndTurn(cur, c.PlayerID)
		})
	case CmdPeek:
		h.applyMove(c, cmd.GameID, cmd.Type, nil, func(cur *game.GameState) (*game.GameState, error) {
			return game.PeekCards(cur, c.PlayerID)
		})
	case CmdSendMessage:
		h.sendMessage(c, cmd)
	case CmdPing:
		h.deliver(c, Event{Type: EvPong})
	default:
		h.deliver(c, ErrorEvent(cmd.GameID, fmt.Sprintf("unknown command type: %s", cmd.Type)))
	}
}

func (h *Hub) createGame(c *Client, cmd Command) {
	name := displayName(c, cmd.DisplayName)
	settings, err := game.ParseSettings(cmd.Settings)
	if err != nil {
		h.reply(c, "", err)
		return
	}

	// the id is not visible to other commands until Create returns, so the creator is
	// in the room before anyone can join
	st, err := h.store.Create(func(id string) (*game.GameState, error) {
		st, err := game.CreateGame(id, c.PlayerID, name, settings)
		if err != nil {
			return nil, err
		}
		h.attach(c, id)
		view, _ := game.ViewFor(st, c.PlayerID)
		h.deliver(c, Event{Type: EvGameCreated, GameID: id, Data: view})
		h.logAction(st, c.PlayerID, CmdCreateGame, map[string]interface{}{"settings": settings})
		return st, nil
	})
	if err != nil {
		h.reply(c, "", err)
		return
	}
	h.logger.WithFields(logrus.Fields{"game_id": st.ID, "player": c.PlayerID}).Info("game created")
}

func (h *Hub) joinGame(c *Client, cmd Command) {
	name := displayName(c, cmd.DisplayName)
	rejoin := false

	_, err := h.store.Update(cmd.GameID, func(cur *game.GameState) (*game.GameState, error) {
		p := cur.Player(c.PlayerID)
		rejoin = p != nil
		if !rejoin {
			return game.AddPlayerToGame(cur, c.PlayerID, name)
		}
		if p.IsConnected {
			return cur, nil
		}
		return game.SetConnected(cur, c.PlayerID, true)
	}, func(next *game.GameState) {
		h.attach(c, next.ID)
		view, _ := game.ViewFor(next, c.PlayerID)
		h.deliver(c, Event{Type: EvGameJoined, GameID: next.ID, Data: view})

		presence := Event{
			Type:   EvPlayerJoined,
			GameID: next.ID,
			Data:   Presence{PlayerID: c.PlayerID, Name: next.Player(c.PlayerID).Name},
		}
		if rejoin {
			presence.Type = EvPlayerReconnected
			h.cancelDeletion(next.ID)
		}
		h.broadcastExcept(next.ID, c, presence)
		h.broadcastState(next)

		if !rejoin {
			h.logAction(next, c.PlayerID, CmdJoinGame, nil)
			h.armMoveTimer(next)
		}
	})
	if err != nil {
		h.reply(c, cmd.GameID, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"game_id": cmd.GameID,
		"player":  c.PlayerID,
		"rejoin":  rejoin,
	}).Info("player joined game")
}

// applyMove runs a Rule Engine move; failures go back to the caller only.
func (h *Hub) applyMove(c *Client, gameID, action string, payload map[string]interface{}, op game.MutateFunc) {
	_, err := h.store.Update(gameID, op, func(next *game.GameState) {
		h.attach(c, next.ID)
		h.afterMove(next, c.PlayerID, action, payload)
	})
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"game_id": gameID,
			"player":  c.PlayerID,
			"action":  action,
		}).Debugf("move rejected: %v", err)
		h.reply(c, gameID, err)
	}
}

// afterMove runs inside the store commit of every applied move.
func (h *Hub) afterMove(next *game.GameState, actor uuid.UUID, action string, payload map[string]interface{}) {
	h.broadcastState(next)
	h.logAction(next, actor, action, payload)
	if next.GameCompleted {
		h.finish(next)
		return
	}
	h.armMoveTimer(next)
}

// finish announces a completed match and hands it to settlement, once per game id.
func (h *Hub) finish(st *game.GameState) {
	h.mu.Lock()
	if h.finished[st.ID] {
		h.mu.Unlock()
		return
	}
	h.finished[st.ID] = true
	h.stopMoveTimerLocked(st.ID)
	h.mu.Unlock()

	over := GameOver{Winner: st.Winner, Stake: st.Settings.Stake}
	loser := st.Loser()
	if loser != nil {
		over.Loser = loser.ID
	}
	h.broadcast(st.ID, Event{Type: EvGameOver, GameID: st.ID, Data: over})
	h.logger.WithFields(logrus.Fields{
		"game_id": st.ID,
		"winner":  over.Winner,
		"loser":   over.Loser,
	}).Info("game over")

	if h.opts.Settlement != nil && loser != nil {
		h.opts.Settlement.Trigger(settlement.Request{
			MatchID:     st.MatchID,
			GameID:      st.ID,
			WinnerID:    st.Winner,
			LoserID:     loser.ID,
			Stake:       st.Settings.Stake,
			RequestedAt: time.Now(),
		})
	}
	h.scheduleDeletion(st.ID, true)
}

func (h *Hub) sendMessage(c *Client, cmd Command) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		h.deliver(c, ErrorEvent(cmd.GameID, "message is empty"))
		return
	}
	if utf8.RuneCountInString(text) > h.opts.MaxMessageLength {
		h.deliver(c, ErrorEvent(cmd.GameID, "message is too long"))
		return
	}

	_, err := h.store.Update(cmd.GameID, func(cur *game.GameState) (*game.GameState, error) {
		p := cur.Player(c.PlayerID)
		if p == nil {
			return nil, game.ErrPlayerNotFound
		}
		return game.AddChatMessage(cur, c.PlayerID, p.Name, text), nil
	}, func(next *game.GameState) {
		h.attach(c, next.ID)
		h.broadcast(next.ID, Event{Type: EvNewMessage, GameID: next.ID, Data: next.Chat[len(next.Chat)-1]})
	})
	if err != nil {
		h.reply(c, cmd.GameID, err)
	}
}

// Disconnect detaches c from every room. A player with no other live connection is
// flagged as disconnected; a game left with nobody connected is deleted after the
// grace period unless someone comes back.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.memberships[c]))
	for id := range h.memberships[c] {
		ids = append(ids, id)
		if room := h.rooms[id]; room != nil {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, id)
			}
		}
	}
	delete(h.memberships, c)
	h.mu.Unlock()
	c.close()

	for _, id := range ids {
		_, err := h.store.Update(id, func(cur *game.GameState) (*game.GameState, error) {
			p := cur.Player(c.PlayerID)
			if p == nil || !p.IsConnected || h.playerAttached(id, c.PlayerID) {
				return nil, errNoChange
			}
			return game.SetConnected(cur, c.PlayerID, false)
		}, func(next *game.GameState) {
			h.broadcast(id, Event{
				Type:   EvPlayerLeft,
				GameID: id,
				Data:   Presence{PlayerID: c.PlayerID, Name: next.Player(c.PlayerID).Name},
			})
			h.broadcastState(next)
			if nobodyConnected(next) {
				h.scheduleDeletion(id, next.Status == game.StatusComplete)
			}
		})
		if err != nil && !errors.Is(err, errNoChange) && !errors.Is(err, game.ErrGameNotFound) {
			h.logger.WithField("game_id", id).Warnf("disconnect update failed: %v", err)
		}
	}
	h.logger.WithFields(logrus.Fields{"player": c.PlayerID, "games": len(ids)}).Info("client disconnected")
}

// Close stops every pending timer and the action log writer. Games stay in the store.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.actions != nil && !h.closed {
		close(h.actions)
	}
	h.closed = true
	for id, d := range h.deletions {
		d.timer.Stop()
		delete(h.deletions, id)
	}
	for id := range h.moveTimers {
		h.stopMoveTimerLocked(id)
	}
}

func (h *Hub) attach(c *Client, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[gameID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[gameID] = room
	}
	room[c] = struct{}{}
	games := h.memberships[c]
	if games == nil {
		games = make(map[string]struct{})
		h.memberships[c] = games
	}
	games[gameID] = struct{}{}
}

// playerAttached reports whether any live connection of playerID is in the room.
func (h *Hub) playerAttached(gameID string, playerID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[gameID] {
		if c.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (h *Hub) roomClients(gameID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.rooms[gameID]))
	for c := range h.rooms[gameID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(c *Client, ev Event) {
	if !c.Send(ev) {
		h.logger.WithFields(logrus.Fields{
			"player": c.PlayerID,
			"type":   ev.Type,
		}).Warn("client queue closed or full, dropped event")
	}
}

func (h *Hub) broadcast(gameID string, ev Event) {
	for _, c := range h.roomClients(gameID) {
		h.deliver(c, ev)
	}
}

func (h *Hub) broadcastExcept(gameID string, skip *Client, ev Event) {
	for _, c := range h.roomClients(gameID) {
		if c != skip {
			h.deliver(c, ev)
		}
	}
}

// broadcastState sends the public view to the room and each seated player's hand to
// that player's connections only.
func (h *Hub) broadcastState(st *game.GameState) {
	clients := h.roomClients(st.ID)
	pub := game.PublicView(st)
	for _, c := range clients {
		h.deliver(c, Event{Type: EvGameUpdated, GameID: st.ID, Data: pub})
	}
	for _, c := range clients {
		if hand, ok := game.HandView(st, c.PlayerID); ok {
			h.deliver(c, Event{Type: EvHandUpdated, GameID: st.ID, Data: hand})
		}
	}
}

func (h *Hub) reply(c *Client, gameID string, err error) {
	h.deliver(c, ErrorEvent(gameID, err.Error()))
}

// logAction numbers the record and queues it for the writer. Records of one game are
// queued in ActionIndex order because every caller holds that game's store lock.
func (h *Hub) logAction(st *game.GameState, actor uuid.UUID, action string, payload map[string]interface{}) {
	if h.actions == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.actionSeq[st.ID]++
	rec := cache.ActionRecord{
		GameID:      st.ID,
		ActionIndex: h.actionSeq[st.ID],
		ActorUserID: actor,
		ActionType:  action,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	select {
	case h.actions <- rec:
	default:
		h.logger.WithField("game_id", rec.GameID).Warnf("action queue full, dropped %s #%d", action, rec.ActionIndex)
	}
}

// writeActions appends queued records one at a time until Close.
func (h *Hub) writeActions() {
	for rec := range h.actions {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.opts.Actions.Append(ctx, rec); err != nil {
			h.logger.WithField("game_id", rec.GameID).Warnf("failed to log action %s: %v", rec.ActionType, err)
		}
		cancel()
	}
}

func displayName(c *Client, requested string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = c.Name
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

func nobodyConnected(st *game.GameState) bool {
	for _, p := range st.Players {
		if p.IsConnected {
			return false
		}
	}
	return true
}
