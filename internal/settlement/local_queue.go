// internal/settlement/local_queue.go
package settlement

import (
	"context"
	"sync"
	"time"
)

// LocalQueue is an in-process Queue used when Redis is not configured.
type LocalQueue struct {
	ch chan Request

	mu   sync.Mutex
	dead []DeadLetter
}

func NewLocalQueue(size int) *LocalQueue {
	if size <= 0 {
		size = 64
	}
	return &LocalQueue{ch: make(chan Request, size)}
}

func (q *LocalQueue) Publish(ctx context.Context, req Request) error {
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *LocalQueue) Pop(ctx context.Context, timeout time.Duration) (Request, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case req := <-q.ch:
		return req, true, nil
	case <-timer.C:
		return Request{}, false, nil
	case <-ctx.Done():
		return Request{}, false, ctx.Err()
	}
}

func (q *LocalQueue) DeadLetter(_ context.Context, dl DeadLetter) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, dl)
	return nil
}

// DeadLetters returns a copy of the parked requests.
func (q *LocalQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.dead...)
}

// Len is the number of requests waiting.
func (q *LocalQueue) Len() int {
	return len(q.ch)
}
