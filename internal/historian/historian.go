// Package historian drains friend events from the Redis queue and writes them
// to PostgreSQL in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each blocking pop so flushes and shutdown are not starved.
const popTimeout = 3 * time.Second

// After a failed pop the loop waits minBackoff, doubling up to popTimeout.
const minBackoff = 100 * time.Millisecond

// Source yields queued events. A nil event with a nil error means the wait timed out.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.FriendEvent, error)
}

// Sink persists a batch of events atomically.
type Sink interface {
	InsertFriendEvents(ctx context.Context, events []models.FriendEvent) error
}

// Service accumulates popped events and flushes them when the batch is full or
// flushDelay has passed since the last flush.
type Service struct {
	src        Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Entry

	batch     []models.FriendEvent
	lastFlush time.Time
}

func New(src Source, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		src:        src,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        logger.WithField("component", "historian"),
		batch:      make([]models.FriendEvent, 0, batchSize),
	}
}

// Run pops events until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.lastFlush = time.Now()
	backoff := minBackoff
	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	for {
		if ctx.Err() != nil {
			// ctx is already done; give the final write its own deadline
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := s.flush(drainCtx)
			cancel()
			return err
		}

		timeout := popTimeout
		if s.flushDelay > 0 && s.flushDelay < timeout {
			timeout = s.flushDelay
		}
		ev, err := s.src.Pop(ctx, timeout)
		switch {
		case err != nil && ctx.Err() == nil:
			s.log.WithError(err).WithField("retry_in", backoff).Error("failed to pop friend event")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, popTimeout)
		case err == nil:
			backoff = minBackoff
			if ev != nil {
				s.batch = append(s.batch, *ev)
			}
		}

		if len(s.batch) >= s.batchSize || time.Since(s.lastFlush) >= s.flushDelay {
			if err := s.flush(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush friend events")
			}
		}
	}
}

// flush writes the current batch. On failure the batch is kept for the next attempt.
func (s *Service) flush(ctx context.Context) error {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.sink.InsertFriendEvents(ctx, s.batch); err != nil {
		return err
	}
	s.log.WithField("count", len(s.batch)).Debug("flushed friend events")
	s.batch = s.batch[:0]
	return nil
}
