// internal/settlement/dispatcher.go
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Dispatcher publishes settlement requests without blocking the caller. A match is
// not published again while an earlier publish of it is in flight. Once the queue has
// the request the entry is dropped; the settler's own idempotency covers later repeats.
type Dispatcher struct {
	queue  Queue
	logger *logrus.Logger

	triggered sync.Map // match id -> struct{}
	wg        sync.WaitGroup

	// PublishTimeout bounds a single publish attempt.
	PublishTimeout time.Duration
	// NewBackOff builds the retry policy for one request.
	NewBackOff func() backoff.BackOff
}

func NewDispatcher(queue Queue, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		queue:          queue,
		logger:         logger,
		PublishTimeout: 5 * time.Second,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Trigger schedules req for publication and reports whether it was accepted. A second
// trigger for a match still being published, or an invalid request, is ignored.
func (d *Dispatcher) Trigger(req Request) bool {
	log := d.logger.WithFields(logrus.Fields{"game_id": req.GameID, "match_id": req.MatchID})
	if err := req.Validate(); err != nil {
		log.Warnf("dropping settlement request: %v", err)
		return false
	}
	if _, dup := d.triggered.LoadOrStore(req.MatchID, struct{}{}); dup {
		log.Debug("settlement already triggered")
		return false
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		op := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), d.PublishTimeout)
			defer cancel()
			return d.queue.Publish(ctx, req)
		}
		notify := func(err error, wait time.Duration) {
			log.Warnf("publish settlement failed, retrying in %s: %v", wait, err)
		}
		if err := backoff.RetryNotify(op, d.NewBackOff(), notify); err != nil {
			// a match that exhausted its retries stays marked
			log.Errorf("giving up on settlement publish: %v", err)
			return
		}
		d.triggered.Delete(req.MatchID)
		log.WithFields(logrus.Fields{
			"winner": req.WinnerID,
			"loser":  req.LoserID,
			"stake":  req.Stake,
		}).Info("settlement queued")
	}()
	return true
}

// Wait blocks until every in-flight publish has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
