// Package market defines the consumed surface of the market-data Security
// collaborator: its change notifications and price accessors. The update
// algorithm and the feed adapters behind it live outside this runtime.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/risk"
	"main/internal/schema"
)

// TickField names the level-1 field a tick updates.
type TickField uint8

const (
	TickLastPrice TickField = iota
	TickLastQty
	TickBidPrice
	TickBidQty
	TickAskPrice
	TickAskQty
)

func (f TickField) String() string {
	switch f {
	case TickLastPrice:
		return "last_price"
	case TickLastQty:
		return "last_qty"
	case TickBidPrice:
		return "bid_price"
	case TickBidQty:
		return "bid_qty"
	case TickAskPrice:
		return "ask_price"
	case TickAskQty:
		return "ask_qty"
	default:
		return "unknown"
	}
}

// Tick is one level-1 field change.
type Tick struct {
	Field TickField
	Value decimal.Decimal
}

// Trade is one market trade print.
type Trade struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
	Side  schema.OrderSide
}

// Bar is one aggregated OHLCV interval.
type Bar struct {
	Start  time.Time
	Period time.Duration
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// BookLevel is one side level of the order book.
type BookLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Book is a top-of-book snapshot.
type Book struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BrokerPosition is a broker-reported position of the security.
type BrokerPosition struct {
	Qty       decimal.Decimal
	IsInitial bool
}

// Security is the market-data object the runtime consumes. Subscribe calls
// return a cancel function releasing the connection; subscribing happens
// during setup, before dispatching is activated.
type Security interface {
	Symbol() schema.Symbol
	RiskContext() *risk.SymbolContext

	BidPrice() decimal.Decimal
	AskPrice() decimal.Decimal
	LastPrice() decimal.Decimal

	SubscribeLevel1Updates(fn func()) (cancel func())
	SubscribeLevel1Ticks(fn func(Tick)) (cancel func())
	SubscribeTrades(fn func(Trade)) (cancel func())
	SubscribeBars(fn func(Bar)) (cancel func())
	SubscribeBookUpdates(fn func(Book)) (cancel func())
	SubscribeBrokerPositionUpdates(fn func(BrokerPosition)) (cancel func())
}
