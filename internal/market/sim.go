package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/risk"
	"main/internal/schema"
)

// SimSecurity is an in-process Security used by tests and the simulated
// feed. Every Push/Set method fires the matching subscriptions on the
// caller's goroutine, like a feed adapter callback would.
type SimSecurity struct {
	symbol  schema.Symbol
	riskCtx *risk.SymbolContext

	mu   sync.RWMutex
	bid  decimal.Decimal
	ask  decimal.Decimal
	last decimal.Decimal

	level1Updates   listeners[struct{}]
	level1Ticks     listeners[Tick]
	trades          listeners[Trade]
	bars            listeners[Bar]
	books           listeners[Book]
	brokerPositions listeners[BrokerPosition]
}

// NewSimSecurity creates a simulated security.
func NewSimSecurity(symbol schema.Symbol, riskCtx *risk.SymbolContext) *SimSecurity {
	return &SimSecurity{symbol: symbol, riskCtx: riskCtx}
}

// Symbol returns the security's symbol.
func (s *SimSecurity) Symbol() schema.Symbol {
	return s.symbol
}

// RiskContext returns the attached risk symbol context.
func (s *SimSecurity) RiskContext() *risk.SymbolContext {
	return s.riskCtx
}

// BidPrice returns the current best bid.
func (s *SimSecurity) BidPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bid
}

// AskPrice returns the current best ask.
func (s *SimSecurity) AskPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ask
}

// LastPrice returns the last trade price.
func (s *SimSecurity) LastPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// SetLevel1 replaces the level-1 state and fires a level-1 update.
func (s *SimSecurity) SetLevel1(bid, ask, last decimal.Decimal) {
	s.mu.Lock()
	s.bid, s.ask, s.last = bid, ask, last
	s.mu.Unlock()
	s.level1Updates.fire(struct{}{})
}

// PushTick fires a level-1 tick, updating the matching field first.
func (s *SimSecurity) PushTick(tick Tick) {
	s.mu.Lock()
	switch tick.Field {
	case TickBidPrice:
		s.bid = tick.Value
	case TickAskPrice:
		s.ask = tick.Value
	case TickLastPrice:
		s.last = tick.Value
	}
	s.mu.Unlock()
	s.level1Ticks.fire(tick)
}

// PushTrade fires a trade print and updates the last price.
func (s *SimSecurity) PushTrade(trade Trade) {
	s.mu.Lock()
	s.last = trade.Price
	s.mu.Unlock()
	s.trades.fire(trade)
}

// PushBar fires a completed bar.
func (s *SimSecurity) PushBar(bar Bar) {
	s.bars.fire(bar)
}

// PushBook fires a book snapshot.
func (s *SimSecurity) PushBook(book Book) {
	s.books.fire(book)
}

// PushBrokerPosition fires a broker position report.
func (s *SimSecurity) PushBrokerPosition(position BrokerPosition) {
	s.brokerPositions.fire(position)
}

// SubscribeLevel1Updates registers a level-1 update listener.
func (s *SimSecurity) SubscribeLevel1Updates(fn func()) (cancel func()) {
	return s.level1Updates.add(func(struct{}) { fn() })
}

// SubscribeLevel1Ticks registers a level-1 tick listener.
func (s *SimSecurity) SubscribeLevel1Ticks(fn func(Tick)) (cancel func()) {
	return s.level1Ticks.add(fn)
}

// SubscribeTrades registers a trade listener.
func (s *SimSecurity) SubscribeTrades(fn func(Trade)) (cancel func()) {
	return s.trades.add(fn)
}

// SubscribeBars registers a bar listener.
func (s *SimSecurity) SubscribeBars(fn func(Bar)) (cancel func()) {
	return s.bars.add(fn)
}

// SubscribeBookUpdates registers a book snapshot listener.
func (s *SimSecurity) SubscribeBookUpdates(fn func(Book)) (cancel func()) {
	return s.books.add(fn)
}

// SubscribeBrokerPositionUpdates registers a broker position listener.
func (s *SimSecurity) SubscribeBrokerPositionUpdates(fn func(BrokerPosition)) (cancel func()) {
	return s.brokerPositions.add(fn)
}

// listeners is a small fan-out list with cancelable registrations.
type listeners[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.entries[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.entries, id)
		l.mu.Unlock()
	}
}

func (l *listeners[T]) fire(value T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.entries))
	for _, fn := range l.entries {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(value)
	}
}
