package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/core"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/tradelog"
	"main/pkg/exception"
)

func testContext() *core.Context {
	return core.NewContext(nil, tradelog.New(nil))
}

func testSecurity(name string) *market.SimSecurity {
	return market.NewSimSecurity(schema.Symbol{Name: name, Base: "BTC", Quote: "USDT"}, nil)
}

// recordingSubscriber collects every delivery under a lock.
type recordingSubscriber struct {
	Module
	mu        sync.Mutex
	level1    []market.Security
	trades    []market.Trade
	reports   []market.BrokerPosition
	positions []Position
}

func newRecordingSubscriber(name string) *recordingSubscriber {
	return &recordingSubscriber{Module: NewModule(name)}
}

func (r *recordingSubscriber) OnLevel1Update(security market.Security) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level1 = append(r.level1, security)
	return nil
}

func (r *recordingSubscriber) OnTrade(_ market.Security, trade market.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *recordingSubscriber) OnBrokerPositionUpdate(_ market.Security, report market.BrokerPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingSubscriber) OnPositionUpdate(position Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, position)
	return nil
}

func (r *recordingSubscriber) tradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

func (r *recordingSubscriber) level1Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.level1)
}

func TestDispatcherDeliversTradesInOrder(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	require.NoError(t, d.Activate())

	sub := newRecordingSubscriber("recorder")
	security := testSecurity("BTC-USDT")

	const n = 100
	for i := 0; i < n; i++ {
		d.SignalTrade(sub, security, market.Trade{
			Price: decimal.NewFromInt(int64(i)),
			Qty:   decimal.NewFromInt(1),
			Side:  schema.OrderSideBuy,
		})
	}
	d.SyncDispatching()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.trades, n)
	for i, trade := range sub.trades {
		assert.True(t, trade.Price.Equal(decimal.NewFromInt(int64(i))),
			"trade %d out of order: %s", i, trade.Price)
	}
}

func TestLevel1UpdateDedup(t *testing.T) {
	metrics := obs.NewMetrics()
	d := NewDispatcher(testContext(), metrics, false)
	defer d.Stop()

	sub := newRecordingSubscriber("recorder")
	first := testSecurity("BTC-USDT")
	second := testSecurity("ETH-USDT")

	// Queues buffer while the dispatcher is not yet active, so pending
	// duplicates are visible to the dedup scan.
	d.SignalLevel1Update(sub, first)
	d.SignalLevel1Update(sub, first)
	d.SignalLevel1Update(sub, first)
	d.SignalLevel1Update(sub, second)

	require.NoError(t, d.Activate())
	d.SyncDispatching()

	assert.Equal(t, 2, sub.level1Count())
	assert.Equal(t, uint64(2), metrics.Snapshot().DedupDrops[schema.EventLevel1Update])
}

func TestPositionUpdateDedupByIdentity(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()

	var count int
	var mu sync.Mutex
	sub := &funcSubscriber{Module: NewModule("counter"), onPosition: func(Position) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}}
	position := &fakePosition{id: 7}

	d.SignalPositionUpdate(sub, position)
	d.SignalPositionUpdate(sub, position)
	d.SignalPositionUpdate(sub, &fakePosition{id: 8})

	require.NoError(t, d.Activate())
	d.SyncDispatching()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestPanicBlocksSubscriberAndSparesOthers(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	require.NoError(t, d.Activate())

	faulty := &funcSubscriber{Module: NewModule("faulty"), onTrade: func(market.Trade) error {
		panic("boom")
	}}
	healthy := newRecordingSubscriber("healthy")
	security := testSecurity("BTC-USDT")
	trade := market.Trade{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1)}

	d.SignalTrade(faulty, security, trade)
	d.SignalTrade(healthy, security, trade)
	d.SyncDispatching()

	assert.True(t, faulty.IsBlocked())
	assert.Equal(t, 1, healthy.tradeCount())

	// Further events for the blocked subscriber are dropped at the door.
	d.SignalTrade(faulty, security, trade)
	d.SignalTrade(healthy, security, trade)
	d.SyncDispatching()
	assert.Equal(t, 2, healthy.tradeCount())
}

func TestHandlerErrorBlocksSubscriber(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	require.NoError(t, d.Activate())

	faulty := &funcSubscriber{Module: NewModule("faulty"), onTrade: func(market.Trade) error {
		return fmt.Errorf("handler failed")
	}}
	d.SignalTrade(faulty, testSecurity("BTC-USDT"), market.Trade{Qty: decimal.NewFromInt(1)})
	d.SyncDispatching()

	assert.True(t, faulty.IsBlocked())
}

func TestSuspendBuffersUntilReactivation(t *testing.T) {
	d := NewDispatcher(testContext(), nil, false)
	defer d.Stop()
	require.NoError(t, d.Activate())
	require.True(t, d.IsActive())
	require.NoError(t, d.Suspend())
	require.False(t, d.IsActive())

	sub := newRecordingSubscriber("recorder")
	d.SignalTrade(sub, testSecurity("BTC-USDT"), market.Trade{Qty: decimal.NewFromInt(1)})
	d.SyncDispatching()
	assert.Equal(t, 0, sub.tradeCount())

	require.NoError(t, d.Activate())
	d.SyncDispatching()
	assert.Equal(t, 1, sub.tradeCount())
}

func TestStopIsTerminal(t *testing.T) {
	metrics := obs.NewMetrics()
	d := NewDispatcher(testContext(), metrics, false)
	require.NoError(t, d.Activate())
	d.Stop()
	d.Stop()

	assert.False(t, d.IsActive())
	assert.ErrorIs(t, d.Activate(), exception.ErrDispatcherStopped)

	sub := newRecordingSubscriber("late")
	d.SignalTrade(sub, testSecurity("BTC-USDT"), market.Trade{Qty: decimal.NewFromInt(1)})
	d.SyncDispatching()
	assert.Equal(t, 0, sub.tradeCount())
	assert.Equal(t, uint64(1), metrics.Snapshot().StoppedDrops)
}

func TestReplayModeDeliversOnSync(t *testing.T) {
	d := NewDispatcher(testContext(), nil, true)
	defer d.Stop()
	require.NoError(t, d.Activate())

	sub := newRecordingSubscriber("recorder")
	security := testSecurity("BTC-USDT")
	for i := 0; i < 10; i++ {
		d.SignalTrade(sub, security, market.Trade{Price: decimal.NewFromInt(int64(i)), Qty: decimal.NewFromInt(1)})
	}
	d.SyncDispatching()
	assert.Equal(t, 10, sub.tradeCount())
}

// funcSubscriber overrides individual handlers with closures.
type funcSubscriber struct {
	Module
	onTrade    func(market.Trade) error
	onPosition func(Position) error
}

func (f *funcSubscriber) OnTrade(_ market.Security, trade market.Trade) error {
	if f.onTrade == nil {
		return nil
	}
	return f.onTrade(trade)
}

func (f *funcSubscriber) OnPositionUpdate(position Position) error {
	if f.onPosition == nil {
		return nil
	}
	return f.onPosition(position)
}

type fakePosition struct {
	id uint64
}

func (p *fakePosition) ID() uint64 { return p.id }

func (p *fakePosition) Security() market.Security { return nil }
