package ingestion

import (
	"sync"
	"time"
)

// IngestMetrics tracks ingestion throughput
type IngestMetrics struct {
	MessagesReceived      int64         `json:"messages_received"`
	MessagesRejected      int64         `json:"messages_rejected"`
	MessagesDropped       int64         `json:"messages_dropped"`
	MessagesProcessed     int64         `json:"messages_processed"`
	MessagesNoop          int64         `json:"messages_noop"`
	MessagesFailed        int64         `json:"messages_failed"`
	LastProcessedAt       time.Time     `json:"last_processed_at"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	BufferSize            int           `json:"buffer_size"`
}

// MetricsTracker provides a goroutine-safe wrapper around IngestMetrics.
type MetricsTracker struct {
	mu        sync.RWMutex
	metrics   IngestMetrics
	listeners []func(IngestMetrics)
}

func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

// Update applies a mutation in a thread-safe way.
func (t *MetricsTracker) Update(fn func(*IngestMetrics)) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.metrics)
	snapshot := t.metrics
	for _, listener := range t.listeners {
		listener(snapshot)
	}
}

// Snapshot returns a copy of the current metrics.
func (t *MetricsTracker) Snapshot() IngestMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

func (t *MetricsTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = IngestMetrics{}
}

// OnChange registers a callback invoked whenever metrics are updated.
func (t *MetricsTracker) OnChange(listener func(IngestMetrics)) {
	if listener == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// recordDone folds one handled message into the running average.
func (m *IngestMetrics) recordDone(took time.Duration, noop bool, at time.Time) {
	done := m.MessagesProcessed + m.MessagesFailed
	m.AverageProcessingTime = time.Duration((int64(m.AverageProcessingTime)*done + int64(took)) / (done + 1))
	m.LastProcessedAt = at
	if noop {
		m.MessagesNoop++
	}
}
