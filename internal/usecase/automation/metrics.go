package automation

import (
	"sync"
	"time"
)

// EngineMetrics tracks automation engine activity
type EngineMetrics struct {
	MutationsApplied      int64         `json:"mutations_applied"`
	MutationsNoop         int64         `json:"mutations_noop"`
	MutationsFailed       int64         `json:"mutations_failed"`
	DerivedWrites         int64         `json:"derived_writes"`
	Retries               int64         `json:"retries"`
	Conflicts             int64         `json:"conflicts"`
	ChargeLinesCreated    int64         `json:"charge_lines_created"`
	InvoicesCreated       int64         `json:"invoices_created"`
	SettlementLines       int64         `json:"settlement_lines_created"`
	DemurrageReevaluated  int64         `json:"demurrage_reevaluated"`
	DemurrageEscalated    int64         `json:"demurrage_escalated"`
	EventsAppended        int64         `json:"events_appended"`
	LastAppliedAt         time.Time     `json:"last_applied_at"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}

// MetricsTracker provides a goroutine-safe wrapper around EngineMetrics.
type MetricsTracker struct {
	mu        sync.RWMutex
	metrics   EngineMetrics
	listeners []func(EngineMetrics)
}

// NewMetricsTracker builds a new tracker with zeroed metrics.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

// Update applies a mutation in a thread-safe way.
func (t *MetricsTracker) Update(fn func(*EngineMetrics)) {
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
func (t *MetricsTracker) Snapshot() EngineMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

// Reset clears accumulated metrics.
func (t *MetricsTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = EngineMetrics{}
}

// OnChange registers a callback invoked whenever metrics are updated.
func (t *MetricsTracker) OnChange(listener func(EngineMetrics)) {
	if listener == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// recordApplied folds one committed mutation into the counters.
func (t *MetricsTracker) recordApplied(out *Outcome, took time.Duration) {
	t.Update(func(m *EngineMetrics) {
		if out.NoOp {
			m.MutationsNoop++
			return
		}
		m.MutationsApplied++
		m.DerivedWrites += int64(len(out.Derived))
		m.ChargeLinesCreated += int64(len(out.ChargeLines))
		if out.InvoiceCreated {
			m.InvoicesCreated++
		}
		m.SettlementLines += int64(len(out.SettlementLines))
		m.EventsAppended += int64(len(out.Events))
		m.LastAppliedAt = time.Now()
		if m.AverageProcessingTime == 0 {
			m.AverageProcessingTime = took
		} else {
			m.AverageProcessingTime = (m.AverageProcessingTime*9 + took) / 10
		}
	})
}
