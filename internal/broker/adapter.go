// Package broker implements the order-execution pipeline: strategy-facing
// send primitives that reserve funds in risk control, hand the order to a
// broker adapter and reconcile every status callback against the
// reservation before the caller sees it.
package broker

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// OrderRequest is one order handed to an adapter. Price is zero for market
// orders.
type OrderRequest struct {
	ID     uint64
	Symbol schema.Symbol
	Side   schema.OrderSide
	Type   schema.OrderType
	Tif    schema.TimeInForce
	Qty    decimal.Decimal
	Price  decimal.Decimal
}

// StatusUpdate is one broker-reported order transition. TradeQty and
// TradePrice are set on fills; RemainingQty is what is still open after the
// transition.
type StatusUpdate struct {
	Status       schema.OrderStatus
	TradeQty     decimal.Decimal
	TradePrice   decimal.Decimal
	RemainingQty decimal.Decimal
}

// Terminal reports whether this transition closes the order. A fill with
// quantity still open is a partial fill: the order stays live until the
// remainder fills or is cancelled.
func (u StatusUpdate) Terminal() bool {
	if u.Status == schema.OrderStatusFilled {
		return !u.RemainingQty.IsPositive()
	}
	return u.Status.IsTerminal()
}

// StatusCallback receives order transitions. The pipeline reconciles risk
// reservations before invoking it, so callers observe post-reconciliation
// ledger state.
type StatusCallback func(update StatusUpdate)

// Adapter is the broker connectivity the pipeline sends through. Send either
// accepts the order, delivering all further transitions through cb, or
// returns an error meaning the order never reached the broker.
type Adapter interface {
	Name() string
	Send(req OrderRequest, cb StatusCallback) error
}
