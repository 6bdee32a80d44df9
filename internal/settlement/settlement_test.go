package settlement

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRequest(gameID string) Request {
	return Request{MatchID: uuid.New(), GameID: gameID, WinnerID: uuid.New(), LoserID: uuid.New(), Stake: 10}
}

// gatedQueue holds every publish until the gate is closed.
type gatedQueue struct {
	*LocalQueue
	gate chan struct{}
}

func (q *gatedQueue) Publish(ctx context.Context, req Request) error {
	select {
	case <-q.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.LocalQueue.Publish(ctx, req)
}

// flakyQueue fails the first n publishes.
type flakyQueue struct {
	*LocalQueue
	failures atomic.Int32
}

func (q *flakyQueue) Publish(ctx context.Context, req Request) error {
	if q.failures.Add(-1) >= 0 {
		return errors.New("redis unavailable")
	}
	return q.LocalQueue.Publish(ctx, req)
}

type fakeSettler struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    []Request
}

func (s *fakeSettler) Settle(_ context.Context, req Request) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.failures > 0 {
		s.failures--
		return Receipt{}, s.err
	}
	return Receipt{MatchID: req.MatchID, GameID: req.GameID, SettlementID: uuid.New(), SettledAt: time.Now()}, nil
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, newRequest("g1").Validate())

	r := newRequest("")
	assert.Error(t, r.Validate())

	r = newRequest("g1")
	r.MatchID = uuid.Nil
	assert.Error(t, r.Validate())

	r = newRequest("g1")
	r.LoserID = r.WinnerID
	assert.Error(t, r.Validate())

	r = newRequest("g1")
	r.Stake = -1
	assert.Error(t, r.Validate())
}

func TestDispatcherIsIdempotent(t *testing.T) {
	q := &gatedQueue{LocalQueue: NewLocalQueue(8), gate: make(chan struct{})}
	d := NewDispatcher(q, quietLogger())

	req := newRequest("g1")
	assert.True(t, d.Trigger(req))
	assert.False(t, d.Trigger(req), "same match while publishing")

	// a rematch in the same room is a different match
	rematch := newRequest("g1")
	assert.True(t, d.Trigger(rematch))
	close(q.gate)
	d.Wait()

	assert.Equal(t, 2, q.Len())
	got, ok, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "g1", got.GameID)
	assert.False(t, got.RequestedAt.IsZero())
}

func TestDispatcherForgetsPublishedMatches(t *testing.T) {
	q := NewLocalQueue(8)
	d := NewDispatcher(q, quietLogger())

	req := newRequest("g1")
	require.True(t, d.Trigger(req))
	d.Wait()
	_, tracked := d.triggered.Load(req.MatchID)
	assert.False(t, tracked)

	// the settler dedupes a repeat that gets past the dispatcher
	assert.True(t, d.Trigger(req))
	d.Wait()
	assert.Equal(t, 2, q.Len())
}

func TestDispatcherRejectsInvalid(t *testing.T) {
	q := NewLocalQueue(8)
	d := NewDispatcher(q, quietLogger())
	assert.False(t, d.Trigger(Request{GameID: "g1"}))
	d.Wait()
	assert.Equal(t, 0, q.Len())
}

func TestDispatcherRetriesPublish(t *testing.T) {
	q := &flakyQueue{LocalQueue: NewLocalQueue(8)}
	q.failures.Store(2)
	d := NewDispatcher(q, quietLogger())
	d.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	require.True(t, d.Trigger(newRequest("g1")))
	d.Wait()
	assert.Equal(t, 1, q.Len())
}

func TestDispatcherGivesUp(t *testing.T) {
	q := &flakyQueue{LocalQueue: NewLocalQueue(8)}
	q.failures.Store(100)
	d := NewDispatcher(q, quietLogger())
	d.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}

	req := newRequest("g1")
	require.True(t, d.Trigger(req))
	d.Wait()
	assert.Equal(t, 0, q.Len())
	assert.False(t, d.Trigger(req), "a failed match stays marked")
}

func TestWorkerSettles(t *testing.T) {
	q := NewLocalQueue(8)
	settler := &fakeSettler{}
	w := NewWorker(q, settler, quietLogger())

	var receipts []Receipt
	w.OnSettled = func(r Receipt) { receipts = append(receipts, r) }

	w.Process(context.Background(), newRequest("g1"))
	require.Len(t, receipts, 1)
	assert.Equal(t, "g1", receipts[0].GameID)
	assert.Len(t, settler.calls, 1)
	assert.Equal(t, 0, q.Len())
}

func TestWorkerRequeuesFailures(t *testing.T) {
	q := NewLocalQueue(8)
	settler := &fakeSettler{failures: 1, err: errors.New("db down")}
	w := NewWorker(q, settler, quietLogger())
	w.RetryBase = time.Millisecond

	w.Process(context.Background(), newRequest("g1"))
	require.Equal(t, 1, q.Len())
	req, ok, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, req.Attempt)

	w.Process(context.Background(), req)
	assert.Len(t, settler.calls, 2)
	assert.Empty(t, q.DeadLetters())
}

func TestWorkerDeadLettersAfterMaxAttempts(t *testing.T) {
	q := NewLocalQueue(8)
	settler := &fakeSettler{failures: 100, err: errors.New("db down")}
	w := NewWorker(q, settler, quietLogger())
	w.RetryBase = time.Millisecond
	w.MaxAttempts = 3
	w.PopTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.NoError(t, q.Publish(ctx, newRequest("g1")))
	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	dl := q.DeadLetters()[0]
	assert.Equal(t, "g1", dl.Request.GameID)
	assert.Equal(t, 3, dl.Request.Attempt)
	assert.Contains(t, dl.Reason, "db down")
	settler.mu.Lock()
	assert.Len(t, settler.calls, 3)
	settler.mu.Unlock()
}

func TestWorkerParksPermanentFailures(t *testing.T) {
	q := NewLocalQueue(8)
	settler := &fakeSettler{failures: 1, err: ErrPermanent}
	w := NewWorker(q, settler, quietLogger())

	w.Process(context.Background(), newRequest("g1"))
	assert.Equal(t, 0, q.Len())
	assert.Len(t, q.DeadLetters(), 1)
}

func TestRetryDelayGrows(t *testing.T) {
	w := NewWorker(NewLocalQueue(1), &fakeSettler{}, quietLogger())
	w.RetryBase = 100 * time.Millisecond
	w.RetryMax = time.Second

	assert.Equal(t, 100*time.Millisecond, w.retryDelay(1))
	assert.Equal(t, 150*time.Millisecond, w.retryDelay(2))
	assert.Equal(t, time.Second, w.retryDelay(20))
}
