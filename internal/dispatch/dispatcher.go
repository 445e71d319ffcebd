// Package dispatch moves market-data and position events from their sources
// to subscribed modules. Each event kind owns a queue; queues are grouped
// into two priority tiers, each drained by one worker goroutine, so handlers
// of one tier never run concurrently with each other. Within a tier the
// worker always re-drains higher-priority queues before touching lower ones.
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/core"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/schema"
	"main/pkg/exception"
)

// tier owns an ordered queue list and the worker draining it. The mutex
// guards every queue's buffers and state; seq counts wakeup reasons so a
// worker never sleeps through a signal sent before it reached Wait.
type tier struct {
	name    string
	metrics *obs.Metrics

	mu          sync.Mutex
	cond        *sync.Cond
	seq         uint64
	queues      []eventQueue
	syncWaiters []chan struct{}
}

func newTier(name string, metrics *obs.Metrics) *tier {
	t := &tier{name: name, metrics: metrics}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Dispatcher is the event pump of the runtime. Market-data kinds share one
// tier; position kinds get their own, so slow market handlers never delay
// position bookkeeping.
type Dispatcher struct {
	ctx     *core.Context
	metrics *obs.Metrics
	replay  bool

	marketTier   *tier
	positionTier *tier

	level1Updates   *EventQueue[level1UpdateEvent]
	level1Ticks     *EventQueue[level1TickEvent]
	bookUpdates     *EventQueue[bookUpdateEvent]
	trades          *EventQueue[tradeEvent]
	bars            *EventQueue[barEvent]
	positions       *EventQueue[positionUpdateEvent]
	brokerPositions *EventQueue[brokerPositionUpdateEvent]

	active  atomic.Bool
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// NewDispatcher creates the dispatcher and starts its workers suspended:
// queues accept events but nothing is delivered until Activate. With replay
// true, enqueues do not wake workers; delivery happens on SyncDispatching so
// playback controls ordering.
func NewDispatcher(ctx *core.Context, metrics *obs.Metrics, replay bool) *Dispatcher {
	d := &Dispatcher{
		ctx:          ctx,
		metrics:      metrics,
		replay:       replay,
		marketTier:   newTier("market data", metrics),
		positionTier: newTier("position", metrics),
	}

	// Queue creation order inside a tier is drain priority.
	d.level1Updates = newEventQueue(d.marketTier, schema.EventLevel1Update,
		func(pending, next level1UpdateEvent) bool {
			return pending.subscriber == next.subscriber && pending.security == next.security
		},
		func(e level1UpdateEvent) {
			d.invoke(e.subscriber, schema.EventLevel1Update, e.enqueued, func() error {
				return e.subscriber.OnLevel1Update(e.security)
			})
		})
	d.level1Ticks = newEventQueue(d.marketTier, schema.EventLevel1Tick, nil,
		func(e level1TickEvent) {
			d.invoke(e.subscriber, schema.EventLevel1Tick, e.enqueued, func() error {
				return e.subscriber.OnLevel1Tick(e.security, e.tick)
			})
		})
	d.bookUpdates = newEventQueue(d.marketTier, schema.EventBookUpdate, nil,
		func(e bookUpdateEvent) {
			d.invoke(e.subscriber, schema.EventBookUpdate, e.enqueued, func() error {
				return e.subscriber.OnBookUpdate(e.security, e.book)
			})
		})
	d.trades = newEventQueue(d.marketTier, schema.EventTrade, nil,
		func(e tradeEvent) {
			d.invoke(e.subscriber, schema.EventTrade, e.enqueued, func() error {
				return e.subscriber.OnTrade(e.security, e.trade)
			})
		})
	d.bars = newEventQueue(d.marketTier, schema.EventBar, nil,
		func(e barEvent) {
			d.invoke(e.subscriber, schema.EventBar, e.enqueued, func() error {
				return e.subscriber.OnBar(e.security, e.bar)
			})
		})

	d.positions = newEventQueue(d.positionTier, schema.EventPositionUpdate,
		func(pending, next positionUpdateEvent) bool {
			return pending.subscriber == next.subscriber && pending.position.ID() == next.position.ID()
		},
		func(e positionUpdateEvent) {
			d.invoke(e.subscriber, schema.EventPositionUpdate, e.enqueued, func() error {
				return e.subscriber.OnPositionUpdate(e.position)
			})
		})
	d.brokerPositions = newEventQueue(d.positionTier, schema.EventBrokerPositionUpdate, nil,
		func(e brokerPositionUpdateEvent) {
			d.invoke(e.subscriber, schema.EventBrokerPositionUpdate, e.enqueued, func() error {
				return e.subscriber.OnBrokerPositionUpdate(e.security, e.position)
			})
		})

	// Both workers must be running before the constructor returns, so
	// callers can rely on Stop joining them.
	var started sync.WaitGroup
	started.Add(2)
	d.wg.Add(2)
	go d.marketTier.run(&started, &d.wg)
	go d.positionTier.run(&started, &d.wg)
	started.Wait()

	return d
}

// IsActive reports whether events are being delivered.
func (d *Dispatcher) IsActive() bool {
	return d.active.Load()
}

// Activate starts delivery on every queue. Events buffered while suspended
// are delivered now.
func (d *Dispatcher) Activate() error {
	if d.stopped.Load() {
		return exception.ErrDispatcherStopped
	}
	logs.Info("activating event dispatching")
	d.marketTier.setAll(queueActive)
	d.positionTier.setAll(queueActive)
	d.active.Store(true)
	return nil
}

// Suspend pauses delivery. Queues keep accepting and buffering events, so a
// later Activate resumes without loss.
func (d *Dispatcher) Suspend() error {
	if d.stopped.Load() {
		return exception.ErrDispatcherStopped
	}
	logs.Info("suspending event dispatching")
	d.active.Store(false)
	d.marketTier.setAll(queueInactive)
	d.positionTier.setAll(queueInactive)
	return nil
}

// Stop terminally shuts the dispatcher down and joins the workers. Events
// enqueued afterwards are counted and dropped.
func (d *Dispatcher) Stop() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	logs.Info("stopping event dispatching")
	d.active.Store(false)
	d.marketTier.setAll(queueStopped)
	d.positionTier.setAll(queueStopped)
	d.wg.Wait()
}

// SyncDispatching blocks until every event enqueued so far has been
// delivered. The replay driver calls this between playback steps.
func (d *Dispatcher) SyncDispatching() {
	d.marketTier.sync()
	d.positionTier.sync()
}

// SignalLevel1Update queues a level-1 update for the subscriber. A pending
// update for the same subscriber and security absorbs it.
func (d *Dispatcher) SignalLevel1Update(sub Subscriber, security market.Security) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.level1Updates.enqueue(level1UpdateEvent{sub, security, time.Now()}, !d.replay)
}

// SignalLevel1Tick queues one level-1 field change.
func (d *Dispatcher) SignalLevel1Tick(sub Subscriber, security market.Security, tick market.Tick) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.level1Ticks.enqueue(level1TickEvent{sub, security, tick, time.Now()}, !d.replay)
}

// SignalTrade queues a market trade print.
func (d *Dispatcher) SignalTrade(sub Subscriber, security market.Security, trade market.Trade) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.trades.enqueue(tradeEvent{sub, security, trade, time.Now()}, !d.replay)
}

// SignalBar queues a completed bar.
func (d *Dispatcher) SignalBar(sub Subscriber, security market.Security, bar market.Bar) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.bars.enqueue(barEvent{sub, security, bar, time.Now()}, !d.replay)
}

// SignalBookUpdate queues a book snapshot.
func (d *Dispatcher) SignalBookUpdate(sub Subscriber, security market.Security, book market.Book) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.bookUpdates.enqueue(bookUpdateEvent{sub, security, book, time.Now()}, !d.replay)
}

// SignalPositionUpdate queues a strategy position update. A pending update
// of the same position for the same subscriber absorbs it.
func (d *Dispatcher) SignalPositionUpdate(sub Subscriber, position Position) {
	if sub == nil || position == nil || sub.IsBlocked() {
		return
	}
	d.positions.enqueue(positionUpdateEvent{sub, position, time.Now()}, !d.replay)
}

// SignalBrokerPositionUpdate queues a broker position report.
func (d *Dispatcher) SignalBrokerPositionUpdate(sub Subscriber, security market.Security, position market.BrokerPosition) {
	if sub == nil || security == nil || sub.IsBlocked() {
		return
	}
	d.brokerPositions.enqueue(brokerPositionUpdateEvent{sub, security, position, time.Now()}, !d.replay)
}

// invoke runs one handler with fault isolation: a panic or a returned error
// blocks the subscriber instead of taking the worker down.
func (d *Dispatcher) invoke(sub Subscriber, kind schema.EventKind, enqueued time.Time, fn func() error) {
	if sub.IsBlocked() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("subscriber %q panicked handling %s: %v", sub.Name(), kind, r)
			sub.Block()
		}
	}()
	if err := fn(); err != nil {
		logs.Errorf("subscriber %q failed handling %s: %+v", sub.Name(), kind, err)
		sub.Block()
		return
	}
	d.metrics.ObserveDispatch(kind, time.Since(enqueued))
}

func (t *tier) run(started, done *sync.WaitGroup) {
	defer done.Done()
	defer t.releaseSyncWaiters()
	logs.Infof("%s dispatch worker started", t.name)
	started.Done()

	for {
		t.mu.Lock()
		seq := t.seq
		t.mu.Unlock()

		worked := t.drainByPriority()

		t.mu.Lock()
		if t.allStopped() {
			t.mu.Unlock()
			logs.Infof("%s dispatch worker stopped", t.name)
			return
		}
		if !worked && t.seq == seq {
			t.completeSyncWaiters()
			for t.seq == seq && !t.allStopped() {
				t.cond.Wait()
			}
		}
		t.mu.Unlock()
	}
}

// drainByPriority drains the tier's queues in declaration order, restarting
// from the first queue whenever a lower one produced work, so the first
// queue is always empty before later ones progress.
func (t *tier) drainByPriority() bool {
	worked := false
	for {
		progressed := false
		for _, q := range t.queues {
			if q.drain() {
				worked = true
				progressed = true
				break
			}
		}
		if !progressed {
			return worked
		}
	}
}

// setAll moves every non-stopped queue to st and wakes the worker.
func (t *tier) setAll(st queueState) {
	t.mu.Lock()
	for _, q := range t.queues {
		if q.state() != queueStopped {
			q.setState(st)
		}
	}
	t.seq++
	t.cond.Broadcast()
	t.mu.Unlock()
}

// sync blocks until the tier is quiet. Returns immediately once the tier is
// stopped.
func (t *tier) sync() {
	done := make(chan struct{})
	t.mu.Lock()
	if t.allStopped() {
		t.mu.Unlock()
		return
	}
	t.syncWaiters = append(t.syncWaiters, done)
	t.seq++
	t.cond.Broadcast()
	t.mu.Unlock()
	<-done
}

// completeSyncWaiters releases waiters once no active queue holds pending
// events. Caller holds the tier lock.
func (t *tier) completeSyncWaiters() {
	if len(t.syncWaiters) == 0 || !t.quiet() {
		return
	}
	for _, ch := range t.syncWaiters {
		close(ch)
	}
	t.syncWaiters = nil
}

func (t *tier) quiet() bool {
	for _, q := range t.queues {
		if q.state() == queueActive && q.pending() > 0 {
			return false
		}
	}
	return true
}

func (t *tier) allStopped() bool {
	for _, q := range t.queues {
		if q.state() != queueStopped {
			return false
		}
	}
	return true
}

func (t *tier) releaseSyncWaiters() {
	t.mu.Lock()
	for _, ch := range t.syncWaiters {
		close(ch)
	}
	t.syncWaiters = nil
	t.mu.Unlock()
}
