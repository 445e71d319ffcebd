package broker

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/core"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/exception"
)

// TradingSystem is the strategy-facing order entry point. Every send
// primitive reserves funds in risk control first; the reservation is
// reconciled on each broker status callback before the caller's callback
// runs, so the ledger is always consistent with what the caller observes.
type TradingSystem struct {
	ctx     *core.Context
	risk    *risk.Control
	adapter Adapter
	metrics *obs.Metrics

	orderSeq atomic.Uint64
}

// NewTradingSystem creates a pipeline over the risk control and adapter.
func NewTradingSystem(ctx *core.Context, riskControl *risk.Control, adapter Adapter, metrics *obs.Metrics) *TradingSystem {
	return &TradingSystem{
		ctx:     ctx,
		risk:    riskControl,
		adapter: adapter,
		metrics: metrics,
	}
}

// Buy sends a limit buy order resting for the day.
func (s *TradingSystem) Buy(scope *risk.Scope, security market.Security, qty, price decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideBuy, schema.OrderTypeLimit, schema.TimeInForceDay, qty, price, cb)
}

// BuyImmediatelyOrCancel sends a limit buy order cancelled for any
// unfilled remainder.
func (s *TradingSystem) BuyImmediatelyOrCancel(scope *risk.Scope, security market.Security, qty, price decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideBuy, schema.OrderTypeLimit, schema.TimeInForceIOC, qty, price, cb)
}

// BuyAtMarketPrice sends a market buy order.
func (s *TradingSystem) BuyAtMarketPrice(scope *risk.Scope, security market.Security, qty decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideBuy, schema.OrderTypeMarket, schema.TimeInForceDay, qty, decimal.Zero, cb)
}

// BuyAtMarketPriceImmediatelyOrCancel sends a market buy order cancelled
// for any unfilled remainder.
func (s *TradingSystem) BuyAtMarketPriceImmediatelyOrCancel(scope *risk.Scope, security market.Security, qty decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideBuy, schema.OrderTypeMarket, schema.TimeInForceIOC, qty, decimal.Zero, cb)
}

// Sell sends a limit sell order resting for the day.
func (s *TradingSystem) Sell(scope *risk.Scope, security market.Security, qty, price decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideSell, schema.OrderTypeLimit, schema.TimeInForceDay, qty, price, cb)
}

// SellImmediatelyOrCancel sends a limit sell order cancelled for any
// unfilled remainder.
func (s *TradingSystem) SellImmediatelyOrCancel(scope *risk.Scope, security market.Security, qty, price decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideSell, schema.OrderTypeLimit, schema.TimeInForceIOC, qty, price, cb)
}

// SellAtMarketPrice sends a market sell order.
func (s *TradingSystem) SellAtMarketPrice(scope *risk.Scope, security market.Security, qty decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideSell, schema.OrderTypeMarket, schema.TimeInForceDay, qty, decimal.Zero, cb)
}

// SellAtMarketPriceImmediatelyOrCancel sends a market sell order cancelled
// for any unfilled remainder.
func (s *TradingSystem) SellAtMarketPriceImmediatelyOrCancel(scope *risk.Scope, security market.Security, qty decimal.Decimal, cb StatusCallback) (uint64, error) {
	return s.sendOrder(scope, security, schema.OrderSideSell, schema.OrderTypeMarket, schema.TimeInForceIOC, qty, decimal.Zero, cb)
}

// riskPrice resolves the price a reservation is computed at. Market orders
// reserve at the touch: the ask for buys, the bid for sells.
func (s *TradingSystem) riskPrice(security market.Security, side schema.OrderSide, typ schema.OrderType, price decimal.Decimal) (decimal.Decimal, error) {
	if typ == schema.OrderTypeLimit {
		if !price.IsPositive() {
			return decimal.Zero, exception.ErrOrderPriceMissing
		}
		return price, nil
	}
	touch := security.AskPrice()
	quote := "ask"
	if side == schema.OrderSideSell {
		touch = security.BidPrice()
		quote = "bid"
	}
	if !touch.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no %s quote for market %s order on %s",
			exception.ErrOrderPriceMissing, quote, side, security.Symbol().Name)
	}
	return touch, nil
}

func (s *TradingSystem) sendOrder(scope *risk.Scope, security market.Security,
	side schema.OrderSide, typ schema.OrderType, tif schema.TimeInForce,
	qty, price decimal.Decimal, cb StatusCallback) (uint64, error) {

	switch side {
	case schema.OrderSideBuy, schema.OrderSideSell:
	default:
		return 0, exception.ErrOrderUnknownSide
	}

	riskPrice, err := s.riskPrice(security, side, typ, price)
	if err != nil {
		return 0, err
	}

	symCtx := security.RiskContext()
	check := s.risk.CheckNewBuyOrder
	confirm := s.risk.ConfirmBuyOrder
	if side == schema.OrderSideSell {
		check = s.risk.CheckNewSellOrder
		confirm = s.risk.ConfirmSellOrder
	}

	op, err := check(scope, symCtx, qty, riskPrice)
	if err != nil {
		s.metrics.IncRiskReject()
		return 0, fmt.Errorf("risk check rejected %s %s order: %w", side, security.Symbol().Name, err)
	}

	id := s.orderSeq.Add(1)
	sentAt := time.Now()
	s.ctx.TradingLog().Write("order", "send", map[string]any{
		"id":        id,
		"operation": uint64(op),
		"adapter":   s.adapter.Name(),
		"symbol":    security.Symbol().Name,
		"side":      side.String(),
		"type":      typ.String(),
		"tif":       tif.String(),
		"qty":       qty.String(),
		"price":     price.String(),
		"riskPrice": riskPrice.String(),
	})

	var finished atomic.Bool
	wrapped := func(update StatusUpdate) {
		if finished.Load() {
			logs.Warnf("order %d: %s update dropped, %s", id, update.Status, exception.ErrOrderAlreadyFinished)
			return
		}
		if err := confirm(op, update.Status, scope, symCtx,
			riskPrice, update.TradeQty, update.TradePrice, update.RemainingQty); err != nil {
			logs.Errorf("order %d funds confirmation failed: %+v", id, err)
		}
		if update.Terminal() {
			finished.Store(true)
			s.metrics.ObserveOrderFlow(time.Since(sentAt))
		}
		if cb != nil {
			cb(update)
		}
	}

	req := OrderRequest{
		ID:     id,
		Symbol: security.Symbol(),
		Side:   side,
		Type:   typ,
		Tif:    tif,
		Qty:    qty,
		Price:  price,
	}
	if err := s.adapter.Send(req, wrapped); err != nil {
		// The order never reached the broker. Synthesize the terminal error
		// transition so the reservation is returned through the same path a
		// broker rejection would take.
		wrapped(StatusUpdate{Status: schema.OrderStatusError, RemainingQty: qty})
		return 0, fmt.Errorf("%w: %s order %d on %s via %s: %v",
			exception.ErrOrderSendFailed, side, id, security.Symbol().Name, s.adapter.Name(), err)
	}
	return id, nil
}
