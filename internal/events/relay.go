package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/transaction"
	"drayage-tms/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RelayStats counts what the relay has moved since start.
type RelayStats struct {
	Published   int64     `json:"published"`
	Failed      int64     `json:"failed"`
	Passes      int64     `json:"passes"`
	LastRunAt   time.Time `json:"last_run_at"`
	LastFailure string    `json:"last_failure,omitempty"`
}

// Relay drains the outbox in append (seq) order. A failed publish stops the batch
// so later events are never delivered ahead of an earlier one.
type Relay struct {
	tx        transaction.Manager
	outbox    event.Outbox
	publisher Publisher
	batchSize int
	now       func() time.Time

	mu    sync.Mutex
	stats RelayStats
}

func NewRelay(tx transaction.Manager, outbox event.Outbox, publisher Publisher, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		tx:        tx,
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Flush publishes one batch and returns how many events went out.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var published []uuid.UUID
	var pubErr error

	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := r.outbox.ListPending(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("list pending events: %w", err)
		}

		for _, e := range pending {
			if err := r.publisher.Publish(ctx, e); err != nil {
				pubErr = fmt.Errorf("publish event %s: %w", e.ID, err)
				break
			}
			published = append(published, e.ID)
		}

		if len(published) == 0 {
			return nil
		}
		return r.outbox.MarkPublished(ctx, published, r.now())
	})

	r.mu.Lock()
	r.stats.Passes++
	r.stats.LastRunAt = r.now()
	if err == nil {
		r.stats.Published += int64(len(published))
	}
	if pubErr != nil {
		r.stats.Failed++
		r.stats.LastFailure = pubErr.Error()
	}
	r.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return len(published), pubErr
}

// Drain flushes until the outbox is empty or a publish fails.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.Flush(ctx)
		total += n
		if err != nil || n < r.batchSize {
			return total, err
		}
	}
}

// Start runs Drain on every tick until ctx is cancelled.
func (r *Relay) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Event relay started",
		zap.Duration("interval", interval),
		zap.Int("batch_size", r.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Event relay stopped")
			return
		case <-ticker.C:
			if n, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Event relay pass failed",
					zap.Int("published", n),
					zap.Error(err),
				)
			} else if n > 0 {
				logger.Debug("Events relayed", zap.Int("published", n))
			}
		}
	}
}

func (r *Relay) Stats() RelayStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
