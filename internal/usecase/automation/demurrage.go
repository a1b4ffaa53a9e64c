package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/logger"
	"drayage-tms/internal/usecase/propagation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReevaluationReport summarizes one demurrage re-evaluation pass
type ReevaluationReport struct {
	Scanned   int           `json:"scanned"`
	Escalated int           `json:"escalated"`
	Conflicts int           `json:"conflicts"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// ReevaluateDemurrage advances the demurrage status of every container still
// out as of now. Containers are paged by id and processed by a bounded worker
// pool, each in its own transaction. A container whose gate event lands while
// it is being evaluated keeps the gate event's result.
func (e *Engine) ReevaluateDemurrage(ctx context.Context, now time.Time) (*ReevaluationReport, error) {
	start := time.Now()
	report := &ReevaluationReport{}
	var mu sync.Mutex

	after := uuid.Nil
	for {
		batch, err := e.deps.Shipments.ListOpenContainers(ctx, after, e.opts.BatchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for _, c := range batch {
			g.Go(func() error {
				changed, err := e.reevaluateOne(gctx, c, now)

				mu.Lock()
				defer mu.Unlock()
				report.Scanned++
				switch {
				case errors.Is(err, shipment.ErrVersionConflict):
					report.Conflicts++
				case err != nil:
					report.Failed++
					logger.Error("Demurrage re-evaluation failed",
						zap.String("container_id", c.ID.String()),
						zap.Error(err),
					)
				case changed:
					report.Escalated++
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return report, err
		}

		after = batch[len(batch)-1].ID
		if len(batch) < e.opts.BatchSize {
			break
		}
	}

	report.Duration = time.Since(start)
	e.metrics.Update(func(m *EngineMetrics) {
		m.DemurrageReevaluated += int64(report.Scanned)
		m.DemurrageEscalated += int64(report.Escalated)
	})
	logger.Info("Demurrage re-evaluation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
		zap.String("event", "demurrage_reevaluated"),
	)
	return report, nil
}

func (e *Engine) reevaluateOne(ctx context.Context, listed *shipment.Container, now time.Time) (bool, error) {
	var changed bool
	err := e.retry(ctx, "demurrage_reevaluate", func(ctx context.Context) error {
		changed = false
		return e.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
			c := *listed
			ok, err := e.deps.Accruals.Reevaluate(ctx, &c, now)
			if err != nil || !ok {
				return err
			}
			changed = true

			out := &Outcome{EventID: uuid.New()}
			action := event.ActionUpdated
			if c.DemurrageStatus != listed.DemurrageStatus {
				action = event.ActionStatusChanged
			}
			out.emit(event.EntityContainer, c.ID, action, string(c.DemurrageStatus), now)

			if !sameInstant(c.FreeTimeExpiresAt, listed.FreeTimeExpiresAt) {
				if err := e.propagate(ctx, out, now, propagation.Node{Kind: propagation.KindContainer, ID: c.ID}); err != nil {
					return err
				}
			}
			return e.deps.Outbox.Append(ctx, out.Events)
		})
	})
	return changed, err
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// StartDemurrageJob runs a re-evaluation pass immediately and then on every
// tick until ctx is cancelled.
func (e *Engine) StartDemurrageJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Demurrage re-evaluation job started",
		zap.Duration("interval", interval),
	)

	e.runDemurragePass(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Demurrage re-evaluation job stopped")
			return
		case <-ticker.C:
			e.runDemurragePass(ctx)
		}
	}
}

func (e *Engine) runDemurragePass(ctx context.Context) {
	if _, err := e.ReevaluateDemurrage(ctx, e.now()); err != nil && ctx.Err() == nil {
		logger.Error("Demurrage re-evaluation pass aborted", zap.Error(err))
	}
}
