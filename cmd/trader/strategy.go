package main

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/dispatch"
	"main/internal/market"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
)

var positionSeq atomic.Uint64

// demoPosition is the strategy's net position in one security.
type demoPosition struct {
	id       uint64
	security market.Security

	mu  sync.Mutex
	qty decimal.Decimal
}

func newDemoPosition(security market.Security) *demoPosition {
	return &demoPosition{id: positionSeq.Add(1), security: security}
}

func (p *demoPosition) ID() uint64 {
	return p.id
}

func (p *demoPosition) Security() market.Security {
	return p.security
}

func (p *demoPosition) apply(side schema.OrderSide, qty decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if side == schema.OrderSideSell {
		p.qty = p.qty.Sub(qty)
	} else {
		p.qty = p.qty.Add(qty)
	}
	return p.qty
}

// touchStrategy is the sample strategy: every few level-1 updates it crosses
// the touch with an immediate-or-cancel order, alternating sides.
type touchStrategy struct {
	dispatch.Module
	system *broker.TradingSystem
	scope  *risk.Scope
	book   *state.PositionBook
	size   decimal.Decimal

	mu          sync.Mutex
	updates     int
	nextSide    schema.OrderSide
	positions   map[string]*demoPosition
	listeners   map[int]func(dispatch.Position)
	listenerSeq int
}

func newTouchStrategy(name string, system *broker.TradingSystem, scope *risk.Scope, book *state.PositionBook, size decimal.Decimal) *touchStrategy {
	if !size.IsPositive() {
		size = decimal.NewFromInt(1)
	}
	return &touchStrategy{
		Module:    dispatch.NewModule(name),
		system:    system,
		scope:     scope,
		book:      book,
		size:      size,
		nextSide:  schema.OrderSideBuy,
		positions: make(map[string]*demoPosition),
		listeners: make(map[int]func(dispatch.Position)),
	}
}

// SubscribePositionUpdates registers a position listener.
func (s *touchStrategy) SubscribePositionUpdates(fn func(dispatch.Position)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.listenerSeq
	s.listenerSeq++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *touchStrategy) OnLevel1Update(security market.Security) error {
	s.mu.Lock()
	s.updates++
	if s.updates%16 != 0 {
		s.mu.Unlock()
		return nil
	}
	side := s.nextSide
	if side == schema.OrderSideBuy {
		s.nextSide = schema.OrderSideSell
	} else {
		s.nextSide = schema.OrderSideBuy
	}
	s.mu.Unlock()

	var err error
	switch side {
	case schema.OrderSideBuy:
		price := security.AskPrice()
		if !price.IsPositive() {
			return nil
		}
		_, err = s.system.BuyImmediatelyOrCancel(s.scope, security, s.size, price, s.orderCallback(security, side))
	default:
		price := security.BidPrice()
		if !price.IsPositive() {
			return nil
		}
		_, err = s.system.SellImmediatelyOrCancel(s.scope, security, s.size, price, s.orderCallback(security, side))
	}
	if err != nil {
		// Risk rejections are part of normal operation, not a strategy fault.
		logs.Warnf("%s order on %s rejected: %+v", side, security.Symbol().Name, err)
	}
	return nil
}

func (s *touchStrategy) orderCallback(security market.Security, side schema.OrderSide) broker.StatusCallback {
	return func(update broker.StatusUpdate) {
		if update.Status != schema.OrderStatusFilled || !update.TradeQty.IsPositive() {
			return
		}
		s.book.ApplyFill(security.Symbol(), side, update.TradeQty)
		position := s.position(security)
		qty := position.apply(side, update.TradeQty)
		logs.Infof("filled %s %s %s at %s, position %s",
			side, update.TradeQty, security.Symbol().Name, update.TradePrice, qty)
		s.notify(position)
	}
}

func (s *touchStrategy) position(security market.Security) *demoPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := security.Symbol().Name
	if p, ok := s.positions[name]; ok {
		return p
	}
	p := newDemoPosition(security)
	s.positions[name] = p
	return p
}

func (s *touchStrategy) notify(position *demoPosition) {
	s.mu.Lock()
	fns := make([]func(dispatch.Position), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(position)
	}
}

func (s *touchStrategy) OnPositionUpdate(position dispatch.Position) error {
	logs.Infof("position %d updated on %s", position.ID(), position.Security().Symbol().Name)
	return nil
}

// bookObserver reconciles broker position reports into the position book.
type bookObserver struct {
	dispatch.Module
	book *state.PositionBook
}

func newBookObserver(name string, book *state.PositionBook) *bookObserver {
	return &bookObserver{Module: dispatch.NewModule(name), book: book}
}

func (o *bookObserver) OnBrokerPositionUpdate(security market.Security, report market.BrokerPosition) error {
	qty := o.book.ApplyBrokerReport(security.Symbol(), report)
	logs.Infof("broker position %s reconciled to %s", security.Symbol().Name, qty)
	return nil
}
