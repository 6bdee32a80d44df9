// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/settlement"
	"github.com/redis/go-redis/v9"
)

// Redis list names.
const (
	DefaultActionQueue     = "durak_actions"
	DefaultSettlementQueue = "durak_settlements"
	deadLetterSuffix       = ":dead"
)

// ConnectRedis opens a client and checks it answers within five seconds.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionRecord is one applied move, kept for replay and audit.
type ActionRecord struct {
	GameID      string                 `json:"game_id"`
	ActionIndex int                    `json:"action_index"`
	ActorUserID uuid.UUID              `json:"actor_user_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// ActionLog appends action records to a Redis list.
type ActionLog struct {
	rdb *redis.Client
	key string
}

func NewActionLog(rdb *redis.Client, key string) *ActionLog {
	if key == "" {
		key = DefaultActionQueue
	}
	return &ActionLog{rdb: rdb, key: key}
}

// Append serializes the record and pushes it onto the list.
func (l *ActionLog) Append(ctx context.Context, rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.key, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.key, err)
	}
	return nil
}

// Range returns the records stored for one game, in the order they were appended.
func (l *ActionLog) Range(ctx context.Context, gameID string) ([]ActionRecord, error) {
	raw, err := l.rdb.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to LRange '%s': %w", l.key, err)
	}
	var out []ActionRecord
	for _, item := range raw {
		var rec ActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		if rec.GameID == gameID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SettlementQueue is a settlement.Queue backed by a Redis list, with a sibling
// list for dead letters.
type SettlementQueue struct {
	rdb *redis.Client
	key string
}

var _ settlement.Queue = (*SettlementQueue)(nil)

func NewSettlementQueue(rdb *redis.Client, key string) *SettlementQueue {
	if key == "" {
		key = DefaultSettlementQueue
	}
	return &SettlementQueue{rdb: rdb, key: key}
}

func (q *SettlementQueue) Publish(ctx context.Context, req settlement.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement request: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.key, err)
	}
	return nil
}

// Pop blocks on BLPOP. A malformed payload is moved to the dead-letter list and
// reported as no request.
func (q *SettlementQueue) Pop(ctx context.Context, timeout time.Duration) (settlement.Request, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return settlement.Request{}, false, nil
	}
	if err != nil {
		return settlement.Request{}, false, err
	}
	if len(res) < 2 {
		return settlement.Request{}, false, nil
	}

	// res[0] is the list name and res[1] the payload.
	var req settlement.Request
	if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
		if derr := q.rdb.RPush(ctx, q.key+deadLetterSuffix, res[1]).Err(); derr != nil {
			return settlement.Request{}, false, fmt.Errorf("invalid settlement payload (%v), dead-letter failed: %w", err, derr)
		}
		return settlement.Request{}, false, nil
	}
	return req, true, nil
}

func (q *SettlementQueue) DeadLetter(ctx context.Context, dl settlement.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	return q.rdb.RPush(ctx, q.key+deadLetterSuffix, data).Err()
}

// DeadLetters reads the parked requests without removing them.
func (q *SettlementQueue) DeadLetters(ctx context.Context) ([]settlement.DeadLetter, error) {
	raw, err := q.rdb.LRange(ctx, q.key+deadLetterSuffix, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]settlement.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl settlement.DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			dl = settlement.DeadLetter{Reason: "unparseable payload: " + item}
		}
		out = append(out, dl)
	}
	return out, nil
}
