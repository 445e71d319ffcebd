package dispatch

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/market"
	"main/internal/schema"
	"main/pkg/exception"
)

// fakeStrategy records how many times its position stream was connected.
type fakeStrategy struct {
	recordingSubscriber

	mu          sync.Mutex
	connections int
	emit        func(Position)
}

func newFakeStrategy(name string) *fakeStrategy {
	return &fakeStrategy{recordingSubscriber: recordingSubscriber{Module: NewModule(name)}}
}

func (s *fakeStrategy) SubscribePositionUpdates(fn func(Position)) (cancel func()) {
	s.mu.Lock()
	s.connections++
	s.emit = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.emit = nil
		s.mu.Unlock()
	}
}

func (s *fakeStrategy) emitPosition(p Position) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(p)
	}
}

func TestManagerRoutesSecurityEvents(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	manager := NewSubscriptionManager(d)

	sub := newRecordingSubscriber("recorder")
	security := testSecurity("BTC-USDT")
	require.NoError(t, manager.SubscribeLevel1Updates(sub, security))
	require.NoError(t, manager.SubscribeTrades(sub, security))
	require.NoError(t, d.Activate())

	security.SetLevel1(decimal.NewFromInt(99), decimal.NewFromInt(101), decimal.NewFromInt(100))
	security.PushTrade(market.Trade{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), Side: schema.OrderSideBuy})
	d.SyncDispatching()

	assert.Equal(t, 1, sub.level1Count())
	assert.Equal(t, 1, sub.tradeCount())

	manager.UnsubscribeAll()
	security.PushTrade(market.Trade{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1)})
	d.SyncDispatching()
	assert.Equal(t, 1, sub.tradeCount())
}

func TestManagerConnectsStrategyPositionsOnce(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	manager := NewSubscriptionManager(d)

	strategy := newFakeStrategy("strategy")
	first := testSecurity("BTC-USDT")
	second := testSecurity("ETH-USDT")
	require.NoError(t, manager.SubscribeLevel1Updates(strategy, first))
	require.NoError(t, manager.SubscribeTrades(strategy, second))

	strategy.mu.Lock()
	connections := strategy.connections
	strategy.mu.Unlock()
	assert.Equal(t, 1, connections)
}

func TestManagerDeliversStrategyPositions(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	manager := NewSubscriptionManager(d)

	strategy := newFakeStrategy("strategy")
	require.NoError(t, manager.SubscribeLevel1Updates(strategy, testSecurity("BTC-USDT")))
	require.NoError(t, d.Activate())

	// Position updates flow back to the emitting strategy.
	strategy.emitPosition(&fakePosition{id: 42})
	d.SyncDispatching()

	strategy.recordingSubscriber.mu.Lock()
	defer strategy.recordingSubscriber.mu.Unlock()
	require.Len(t, strategy.positions, 1)
	assert.Equal(t, uint64(42), strategy.positions[0].ID())
}

func TestManagerRejectsSetupAfterActivation(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	manager := NewSubscriptionManager(d)
	require.NoError(t, d.Activate())

	err := manager.SubscribeTrades(newRecordingSubscriber("late"), testSecurity("BTC-USDT"))
	assert.ErrorIs(t, err, exception.ErrDispatcherActive)
}

func TestManagerValidatesArguments(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	manager := NewSubscriptionManager(d)

	assert.ErrorIs(t, manager.SubscribeTrades(nil, testSecurity("BTC-USDT")), exception.ErrSubscriberNil)
	assert.ErrorIs(t, manager.SubscribeTrades(newRecordingSubscriber("sub"), nil), exception.ErrSecurityNil)

	blocked := newRecordingSubscriber("blocked")
	blocked.Block()
	assert.ErrorIs(t, manager.SubscribeTrades(blocked, testSecurity("BTC-USDT")), exception.ErrSubscriberBlocked)
}
