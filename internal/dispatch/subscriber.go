package dispatch

import (
	"sync/atomic"

	"github.com/yanun0323/logs"

	"main/internal/market"
)

// Position is the strategy-owned position handle carried by position-update
// events. IDs are unique per process and identify the position for pending
// event dedup.
type Position interface {
	ID() uint64
	Security() market.Security
}

// Subscriber receives dispatched events. Handlers run on a dispatcher worker
// goroutine, one kind at a time; a returned error or a panic blocks the
// subscriber and no further events are delivered to it.
type Subscriber interface {
	Name() string
	IsBlocked() bool
	Block()

	OnLevel1Update(security market.Security) error
	OnLevel1Tick(security market.Security, tick market.Tick) error
	OnTrade(security market.Security, trade market.Trade) error
	OnBar(security market.Security, bar market.Bar) error
	OnBookUpdate(security market.Security, book market.Book) error
	OnPositionUpdate(position Position) error
	OnBrokerPositionUpdate(security market.Security, position market.BrokerPosition) error
}

// Strategy is a subscriber that additionally emits position updates of its
// own. The subscription manager connects a strategy's position stream to the
// dispatcher once, no matter how many securities it subscribes to.
type Strategy interface {
	Subscriber
	SubscribePositionUpdates(fn func(Position)) (cancel func())
}

// Module is the embeddable subscriber base: a name, a blocked flag and no-op
// handlers for every event kind. Concrete subscribers override the handlers
// they care about.
type Module struct {
	name    string
	blocked atomic.Bool
}

// NewModule creates a subscriber base with the given name.
func NewModule(name string) Module {
	return Module{name: name}
}

// Name returns the subscriber name.
func (m *Module) Name() string {
	return m.name
}

// IsBlocked reports whether the subscriber has been blocked.
func (m *Module) IsBlocked() bool {
	return m.blocked.Load()
}

// Block marks the subscriber blocked. Irreversible.
func (m *Module) Block() {
	if m.blocked.CompareAndSwap(false, true) {
		logs.Warnf("subscriber %q is blocked, no further events will be delivered", m.name)
	}
}

func (m *Module) OnLevel1Update(market.Security) error { return nil }

func (m *Module) OnLevel1Tick(market.Security, market.Tick) error { return nil }

func (m *Module) OnTrade(market.Security, market.Trade) error { return nil }

func (m *Module) OnBar(market.Security, market.Bar) error { return nil }

func (m *Module) OnBookUpdate(market.Security, market.Book) error { return nil }

func (m *Module) OnPositionUpdate(Position) error { return nil }

func (m *Module) OnBrokerPositionUpdate(market.Security, market.BrokerPosition) error { return nil }
