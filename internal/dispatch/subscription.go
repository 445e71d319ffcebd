package dispatch

import (
	"sync"

	"main/internal/market"
	"main/pkg/exception"
)

// SubscriptionManager connects security notifications to the dispatcher for
// individual subscribers. Connections are made during setup, before the
// dispatcher is activated, and torn down together by UnsubscribeAll.
type SubscriptionManager struct {
	dispatcher *Dispatcher

	mu         sync.Mutex
	cancels    []func()
	strategies map[Strategy]struct{}
}

// NewSubscriptionManager creates a manager bound to the dispatcher.
func NewSubscriptionManager(d *Dispatcher) *SubscriptionManager {
	return &SubscriptionManager{
		dispatcher: d,
		strategies: make(map[Strategy]struct{}),
	}
}

// SubscribeLevel1Updates routes the security's level-1 updates to the
// subscriber.
func (m *SubscriptionManager) SubscribeLevel1Updates(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeLevel1Updates(func() {
			m.dispatcher.SignalLevel1Update(sub, security)
		})
	})
}

// SubscribeLevel1Ticks routes the security's level-1 field changes to the
// subscriber.
func (m *SubscriptionManager) SubscribeLevel1Ticks(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeLevel1Ticks(func(tick market.Tick) {
			m.dispatcher.SignalLevel1Tick(sub, security, tick)
		})
	})
}

// SubscribeTrades routes the security's trade prints to the subscriber.
func (m *SubscriptionManager) SubscribeTrades(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeTrades(func(trade market.Trade) {
			m.dispatcher.SignalTrade(sub, security, trade)
		})
	})
}

// SubscribeBars routes the security's completed bars to the subscriber.
func (m *SubscriptionManager) SubscribeBars(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeBars(func(bar market.Bar) {
			m.dispatcher.SignalBar(sub, security, bar)
		})
	})
}

// SubscribeBookUpdates routes the security's book snapshots to the
// subscriber.
func (m *SubscriptionManager) SubscribeBookUpdates(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeBookUpdates(func(book market.Book) {
			m.dispatcher.SignalBookUpdate(sub, security, book)
		})
	})
}

// SubscribeBrokerPositionUpdates routes broker position reports of the
// security to the subscriber.
func (m *SubscriptionManager) SubscribeBrokerPositionUpdates(sub Subscriber, security market.Security) error {
	return m.connect(sub, security, func() func() {
		return security.SubscribeBrokerPositionUpdates(func(p market.BrokerPosition) {
			m.dispatcher.SignalBrokerPositionUpdate(sub, security, p)
		})
	})
}

// connect validates the pair, registers the connection and, for strategies,
// makes sure the strategy's own position stream is wired exactly once.
func (m *SubscriptionManager) connect(sub Subscriber, security market.Security, bind func() func()) error {
	if sub == nil {
		return exception.ErrSubscriberNil
	}
	if security == nil {
		return exception.ErrSecurityNil
	}
	if m.dispatcher.IsActive() {
		return exception.ErrDispatcherActive
	}
	if sub.IsBlocked() {
		return exception.ErrSubscriberBlocked
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, bind())
	if strategy, ok := sub.(Strategy); ok {
		m.connectStrategyLocked(strategy)
	}
	return nil
}

func (m *SubscriptionManager) connectStrategyLocked(strategy Strategy) {
	if _, ok := m.strategies[strategy]; ok {
		return
	}
	m.strategies[strategy] = struct{}{}
	cancel := strategy.SubscribePositionUpdates(func(p Position) {
		m.dispatcher.SignalPositionUpdate(strategy, p)
	})
	m.cancels = append(m.cancels, cancel)
}

// UnsubscribeAll releases every connection made through the manager.
func (m *SubscriptionManager) UnsubscribeAll() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.strategies = make(map[Strategy]struct{})
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
