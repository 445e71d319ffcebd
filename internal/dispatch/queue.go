package dispatch

import (
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// heavyLoadIterations is how many buffer swaps a single drain pass tolerates
// before warning that producers outrun the worker.
const heavyLoadIterations = 500

type queueState int32

const (
	queueInactive queueState = iota
	queueActive
	queueStopped
)

// eventQueue is the kind-erased view a tier keeps of its queues. state,
// setState and pending require the tier lock; drain must be called without
// it.
type eventQueue interface {
	kind() schema.EventKind
	drain() bool
	pending() int
	state() queueState
	setState(st queueState)
}

// EventQueue buffers events of one kind between producers and the tier
// worker. Two swap buffers let producers append while the worker raises the
// previous batch outside the lock.
type EventQueue[T any] struct {
	t         *tier
	eventKind schema.EventKind
	buffers   [2][]T
	active    int
	st        queueState

	// sameAs, when set, drops an enqueued event that duplicates a pending
	// one instead of queueing it twice.
	sameAs func(pending, next T) bool
	raise  func(T)
}

func newEventQueue[T any](t *tier, kind schema.EventKind, sameAs func(T, T) bool, raise func(T)) *EventQueue[T] {
	q := &EventQueue[T]{t: t, eventKind: kind, sameAs: sameAs, raise: raise}
	t.queues = append(t.queues, q)
	return q
}

func (q *EventQueue[T]) kind() schema.EventKind { return q.eventKind }

func (q *EventQueue[T]) pending() int { return len(q.buffers[q.active]) }

func (q *EventQueue[T]) state() queueState { return q.st }

func (q *EventQueue[T]) setState(st queueState) { q.st = st }

// enqueue appends the event to the pending buffer. With notify false the
// worker is left asleep; deterministic replay uses this to defer delivery
// until the next SyncDispatching.
func (q *EventQueue[T]) enqueue(e T, notify bool) {
	q.t.mu.Lock()
	if q.st == queueStopped {
		q.t.mu.Unlock()
		q.t.metrics.IncStoppedDrop()
		return
	}
	if q.sameAs != nil {
		for i := range q.buffers[q.active] {
			if q.sameAs(q.buffers[q.active][i], e) {
				q.t.mu.Unlock()
				q.t.metrics.IncDedupDrop(q.eventKind)
				return
			}
		}
	}
	q.buffers[q.active] = append(q.buffers[q.active], e)
	if notify {
		q.t.seq++
		q.t.cond.Signal()
	}
	q.t.mu.Unlock()
}

// drain raises pending events until the queue is empty, swapping buffers so
// producers never wait on handler time. Returns whether anything was raised.
func (q *EventQueue[T]) drain() bool {
	worked := false
	iterations := 0
	q.t.mu.Lock()
	for q.st == queueActive && len(q.buffers[q.active]) > 0 {
		batch := q.buffers[q.active]
		q.active ^= 1
		q.t.mu.Unlock()

		for i := range batch {
			q.raise(batch[i])
		}
		worked = true
		iterations++
		if iterations%heavyLoadIterations == 0 {
			logs.Warnf("%s queue is under heavy load, %d drain iterations and still not empty", q.eventKind, iterations)
		}

		q.t.mu.Lock()
		q.buffers[q.active^1] = batch[:0]
	}
	q.t.mu.Unlock()
	return worked
}
