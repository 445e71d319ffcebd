package risk

import "time"

// floodControlWindow is a fixed-capacity ring of order timestamps. Capacity
// is fixed at scope construction; the window is always checked before a new
// timestamp is inserted.
type floodControlWindow struct {
	period time.Duration
	times  []time.Time
	head   int
	size   int
}

func newFloodControlWindow(period time.Duration, capacity int) *floodControlWindow {
	return &floodControlWindow{
		period: period,
		times:  make([]time.Time, capacity),
	}
}

// evict drops timestamps that left the sliding window before now.
func (w *floodControlWindow) evict(now time.Time) {
	oldest := now.Add(-w.period)
	for w.size > 0 && w.times[w.head].Before(oldest) {
		w.head = (w.head + 1) % len(w.times)
		w.size--
	}
}

func (w *floodControlWindow) full() bool {
	return w.size >= len(w.times)
}

func (w *floodControlWindow) append(now time.Time) {
	if w.full() {
		// Callers check full() first; overwrite the oldest as a safety net.
		w.head = (w.head + 1) % len(w.times)
		w.size--
	}
	w.times[(w.head+w.size)%len(w.times)] = now
	w.size++
}

func (w *floodControlWindow) len() int {
	return w.size
}

func (w *floodControlWindow) oldest() (time.Time, bool) {
	if w.size == 0 {
		return time.Time{}, false
	}
	return w.times[w.head], true
}

func (w *floodControlWindow) newest() (time.Time, bool) {
	if w.size == 0 {
		return time.Time{}, false
	}
	return w.times[(w.head+w.size-1)%len(w.times)], true
}
