package automation

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"drayage-tms/internal/logger"
	appErrors "drayage-tms/pkg/errors"

	"go.uber.org/zap"
)

// retry reruns fn while it fails with lock contention, backing off
// exponentially with jitter. Once MaxRetries is spent the contention is
// surfaced as a CONFLICT AppError.
func (e *Engine) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !errors.Is(err, appErrors.ErrLockContention) {
			return err
		}

		if attempt >= e.opts.MaxRetries {
			e.metrics.Update(func(m *EngineMetrics) { m.Conflicts++ })
			return appErrors.NewAppError(appErrors.CodeConflict, "Concurrent update, please retry", err)
		}

		wait := backoff(e.opts.RetryBaseDelay, attempt)
		e.metrics.Update(func(m *EngineMetrics) { m.Retries++ })
		logger.Debug("Lock contention, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff returns base*2^attempt plus up to base of jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	return d + rand.N(base)
}
