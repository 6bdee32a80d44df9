// internal/settlement/worker.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrPermanent marks a settle failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent settlement failure")

// Worker pops requests from a Queue and hands them to a Settler. Failed requests go
// back on the queue with their attempt count raised; after MaxAttempts they are
// parked on the dead-letter list.
type Worker struct {
	queue   Queue
	settler Settler
	logger  *logrus.Logger

	MaxAttempts int
	PopTimeout  time.Duration
	RetryBase   time.Duration
	RetryMax    time.Duration

	// OnSettled, if set, observes every successful receipt.
	OnSettled func(Receipt)
}

func NewWorker(queue Queue, settler Settler, logger *logrus.Logger) *Worker {
	return &Worker{
		queue:       queue,
		settler:     settler,
		logger:      logger,
		MaxAttempts: 5,
		PopTimeout:  3 * time.Second,
		RetryBase:   500 * time.Millisecond,
		RetryMax:    30 * time.Second,
	}
}

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("settlement worker started")
	for {
		req, ok, err := w.queue.Pop(ctx, w.PopTimeout)
		if ctx.Err() != nil {
			w.logger.Info("settlement worker stopping")
			return nil
		}
		if err != nil {
			w.logger.Errorf("settlement pop: %v", err)
			if !sleepCtx(ctx, w.RetryBase) {
				return nil
			}
			continue
		}
		if !ok {
			continue
		}
		w.Process(ctx, req)
	}
}

// Process settles one request, re-queueing or dead-lettering it on failure.
func (w *Worker) Process(ctx context.Context, req Request) {
	log := w.logger.WithFields(logrus.Fields{"game_id": req.GameID, "match_id": req.MatchID, "attempt": req.Attempt})

	if err := req.Validate(); err != nil {
		w.park(ctx, req, err)
		return
	}

	receipt, err := w.settler.Settle(ctx, req)
	if err == nil {
		if receipt.Duplicate {
			log.Info("game already settled")
		} else {
			log.WithFields(logrus.Fields{
				"winner_rating": receipt.WinnerRating,
				"loser_rating":  receipt.LoserRating,
			}).Info("game settled")
		}
		if w.OnSettled != nil {
			w.OnSettled(receipt)
		}
		return
	}

	req.Attempt++
	if req.Attempt >= w.MaxAttempts || errors.Is(err, ErrPermanent) {
		w.park(ctx, req, err)
		return
	}

	delay := w.retryDelay(req.Attempt)
	log.Warnf("settle failed, re-queueing in %s: %v", delay, err)
	if !sleepCtx(ctx, delay) {
		// shutting down; put it back untouched so the next worker picks it up
		ctx = context.Background()
	}
	if perr := w.queue.Publish(ctx, req); perr != nil {
		w.park(ctx, req, fmt.Errorf("re-queue: %w (after %v)", perr, err))
	}
}

func (w *Worker) park(ctx context.Context, req Request, cause error) {
	w.logger.WithFields(logrus.Fields{"game_id": req.GameID, "match_id": req.MatchID}).Errorf("dead-lettering settlement: %v", cause)
	dl := DeadLetter{Request: req, Reason: cause.Error(), At: time.Now()}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := w.queue.DeadLetter(ctx, dl); err != nil {
		w.logger.WithField("game_id", req.GameID).Errorf("dead-letter write failed: %v", err)
	}
}

// retryDelay is the exponential delay before the given attempt, without jitter.
func (w *Worker) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.RetryBase
	b.MaxInterval = w.RetryMax
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
