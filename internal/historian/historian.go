// Package historian drains the Redis action queue into Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/bombchip/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// maxPendingBatches bounds how much is kept in memory while the sink is failing.
const maxPendingBatches = 10

// Sink persists one batch of actions. It must tolerate replays and must not
// retain the slice.
type Sink func(ctx context.Context, actions []models.GameAction) error

// Service pops action records from a Redis list and hands them to a Sink
// whenever the batch is full or the flush interval elapses.
type Service struct {
	rdb        *redis.Client
	queue      string
	batchSize  int
	flushEvery time.Duration
	sink       Sink
	log        *logrus.Logger

	mu    sync.Mutex
	batch []models.GameAction
}

func NewService(rdb *redis.Client, queue string, batchSize int, flushEvery time.Duration, sink Sink, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	return &Service{
		rdb:        rdb,
		queue:      queue,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		sink:       sink,
		log:        logger,
		batch:      make([]models.GameAction, 0, batchSize),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	popTimeout := time.Second
	if s.flushEvery < popTimeout {
		popTimeout = s.flushEvery
	}

	s.log.WithField("queue", s.queue).Info("historian started")
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Flush(flushCtx)
			cancel()
			s.log.Info("historian stopped")
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			res, err := s.rdb.BLPop(ctx, popTimeout, s.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					s.log.WithError(err).Error("BLPop failed")
					time.Sleep(popTimeout)
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload.
			if len(res) == 2 {
				s.Add(ctx, res[1])
			}
		}
	}
}

// Add decodes one queued record and appends it, flushing when the batch is full.
func (s *Service) Add(ctx context.Context, payload string) {
	var rec models.GameAction
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.log.WithError(err).Warn("invalid action record")
		return
	}

	s.mu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch. On failure the records stay pending for the
// next flush, up to maxPendingBatches worth; older records are dropped first.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batch) == 0 {
		return
	}

	if err := s.sink(ctx, s.batch); err != nil {
		s.log.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush actions")
		if limit := maxPendingBatches * s.batchSize; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.WithField("dropped", dropped).Warn("historian backlog full, dropped oldest actions")
		}
		return
	}
	s.log.Debugf("flushed %d actions", len(s.batch))
	s.batch = s.batch[:0]
}

// Pending returns the number of records waiting for a flush.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}
