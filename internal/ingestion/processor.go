package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"drayage-tms/internal/logger"
	"drayage-tms/internal/usecase/automation"
	appErrors "drayage-tms/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBufferFull is returned by Submit when the worker queue has no room.
var ErrBufferFull = errors.New("ingestion buffer full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("ingestion processor stopped")

// Handler applies one mutation. *automation.Engine satisfies it.
type Handler interface {
	Handle(ctx context.Context, m automation.MutationEvent) (*automation.Outcome, error)
}

// Processor queues mutations on bounded per-worker channels. Mutations are
// sharded by entity id so one entity's mutations apply in arrival order.
type Processor struct {
	handler Handler

	workerCount int
	bufferSize  int
	timeout     time.Duration

	queues []chan automation.MutationEvent

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	metrics *MetricsTracker
}

func NewProcessor(handler Handler, workerCount, bufferSize int, timeout time.Duration) *Processor {
	if workerCount <= 0 {
		workerCount = 1
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	perWorker := bufferSize / workerCount
	if perWorker == 0 {
		perWorker = 1
	}
	queues := make([]chan automation.MutationEvent, workerCount)
	for i := range queues {
		queues[i] = make(chan automation.MutationEvent, perWorker)
	}

	return &Processor{
		handler:     handler,
		workerCount: workerCount,
		bufferSize:  bufferSize,
		timeout:     timeout,
		queues:      queues,
		metrics:     NewMetricsTracker(),
	}
}

func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	logger.Info("Starting ingestion processor",
		zap.Int("workers", p.workerCount),
		zap.Int("buffer_size", p.bufferSize),
	)

	for i, q := range p.queues {
		p.wg.Add(1)
		go p.worker(i, q)
	}
}

// Stop closes the queues and waits for the workers to drain them.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
	logger.Info("Ingestion processor stopped")
}

// Submit queues a mutation without blocking.
func (p *Processor) Submit(m automation.MutationEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	q := p.queues[p.shard(m)]
	select {
	case q <- m:
		p.metrics.Update(func(mt *IngestMetrics) {
			mt.MessagesReceived++
			mt.BufferSize = p.queued()
		})
		return nil
	default:
		logger.Warn("Ingestion buffer full, dropping mutation", zap.String("kind", string(m.Kind)))
		p.metrics.Update(func(mt *IngestMetrics) {
			mt.MessagesDropped++
		})
		return ErrBufferFull
	}
}

// Reject counts a message that failed to parse or validate.
func (p *Processor) Reject(topic string, err error) {
	logger.Warn("Rejected ingestion message", zap.String("topic", topic), zap.Error(err))
	p.metrics.Update(func(mt *IngestMetrics) {
		mt.MessagesRejected++
	})
}

func (p *Processor) GetMetrics() IngestMetrics {
	return p.metrics.Snapshot()
}

func (p *Processor) queued() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// shard keys on the last byte of the entity id, which is random in a v4 uuid.
func (p *Processor) shard(m automation.MutationEvent) int {
	key := entityKey(m)
	return int(key[len(key)-1]) % len(p.queues)
}

func entityKey(m automation.MutationEvent) uuid.UUID {
	switch {
	case m.OrderStatus != nil:
		return m.OrderStatus.OrderID
	case m.OrderDelete != nil:
		return m.OrderDelete.OrderID
	case m.TripStatus != nil:
		return m.TripStatus.TripID
	case m.Gate != nil:
		return m.Gate.ContainerID
	}
	return uuid.Nil
}

func (p *Processor) worker(id int, q <-chan automation.MutationEvent) {
	defer p.wg.Done()
	log := logger.Named("ingestion").With(zap.Int("worker", id))

	for m := range q {
		p.process(log, m)
	}
}

func (p *Processor) process(log *zap.Logger, m automation.MutationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.handler.Handle(ctx, m)
	took := time.Since(start)

	if err != nil {
		fields := []zap.Field{
			zap.String("kind", string(m.Kind)),
			zap.String("entity_id", entityKey(m).String()),
			zap.String("code", appErrors.CodeOf(err)),
			zap.Error(err),
		}
		switch appErrors.CodeOf(err) {
		case appErrors.CodeNotFound, appErrors.CodeValidation, appErrors.CodeInvalidTransition:
			log.Warn("Mutation rejected by engine", fields...)
		default:
			log.Error("Mutation failed", fields...)
		}
		p.metrics.Update(func(mt *IngestMetrics) {
			mt.recordDone(took, false, time.Now())
			mt.MessagesFailed++
			mt.BufferSize = p.queued()
		})
		return
	}

	p.metrics.Update(func(mt *IngestMetrics) {
		mt.recordDone(took, out != nil && out.NoOp, time.Now())
		mt.MessagesProcessed++
		mt.BufferSize = p.queued()
	})
}
