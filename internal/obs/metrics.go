// Package obs collects lightweight runtime counters: dispatched event
// volumes, dispatch latency and risk rejections. All methods are safe on a
// nil receiver so metrics stay optional.
package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

// Metrics aggregates atomic counters and latency stats.
type Metrics struct {
	eventCounts      [schema.EventKindCount]uint64
	dedupDrops       [schema.EventKindCount]uint64
	stoppedDrops     uint64
	riskRejects      uint64
	dispatchLatency  LatencyStats
	orderFlowLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[schema.EventKind]uint64
	DedupDrops       map[schema.EventKind]uint64
	StoppedDrops     uint64
	RiskRejects      uint64
	DispatchLatency  LatencySnapshot
	OrderFlowLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveDispatch records one dispatched event and its queue-to-handler
// latency.
func (m *Metrics) ObserveDispatch(kind schema.EventKind, d time.Duration) {
	if m == nil {
		return
	}
	if idx := int(kind); idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	m.dispatchLatency.Observe(d)
}

// IncDedupDrop records one event dropped as a duplicate of a pending one.
func (m *Metrics) IncDedupDrop(kind schema.EventKind) {
	if m == nil {
		return
	}
	if idx := int(kind); idx < len(m.dedupDrops) {
		atomic.AddUint64(&m.dedupDrops[idx], 1)
	}
}

// IncStoppedDrop records an enqueue attempt against a stopped queue.
func (m *Metrics) IncStoppedDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stoppedDrops, 1)
}

// IncRiskReject records one order rejected by a risk check.
func (m *Metrics) IncRiskReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskRejects, 1)
}

// ObserveOrderFlow measures send-to-terminal-status order latency.
func (m *Metrics) ObserveOrderFlow(d time.Duration) {
	if m == nil {
		return
	}
	m.orderFlowLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	events := make(map[schema.EventKind]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			events[schema.EventKind(i)] = v
		}
	}
	dedups := make(map[schema.EventKind]uint64)
	for i := range m.dedupDrops {
		if v := atomic.LoadUint64(&m.dedupDrops[i]); v > 0 {
			dedups[schema.EventKind(i)] = v
		}
	}
	return Snapshot{
		EventCounts:      events,
		DedupDrops:       dedups,
		StoppedDrops:     atomic.LoadUint64(&m.stoppedDrops),
		RiskRejects:      atomic.LoadUint64(&m.riskRejects),
		DispatchLatency:  m.dispatchLatency.Snapshot(),
		OrderFlowLatency: m.orderFlowLatency.Snapshot(),
	}
}

// Observe records one duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}
	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
