package schema

// Currency is an ISO-style currency or asset code, e.g. "EUR" or "BTC".
type Currency string

// Symbol describes a tradable instrument as a base/quote currency pair.
type Symbol struct {
	Name  string
	Base  Currency
	Quote Currency
}

// OrderSide is the direction of an order.
type OrderSide uint8

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType distinguishes market and limit orders.
type OrderType uint8

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// TimeInForce is the order lifetime policy.
type TimeInForce uint8

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceDay
	TimeInForceIOC
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceDay:
		return "day"
	case TimeInForceIOC:
		return "ioc"
	default:
		return "unknown"
	}
}

// OrderStatus is the broker-reported lifecycle status of an order.
// The risk ledger reconciles reservations on every status transition.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPending
	OrderStatusSubmitted
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusInactive
	OrderStatusError
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusSubmitted:
		return "submitted"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusInactive:
		return "inactive"
	case OrderStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further status callbacks are expected.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusInactive, OrderStatusError:
		return true
	default:
		return false
	}
}

// EventKind identifies one dispatched event category. Each kind owns one
// queue inside the dispatcher.
type EventKind uint8

const (
	EventLevel1Update EventKind = iota
	EventLevel1Tick
	EventTrade
	EventBar
	EventBookUpdate
	EventPositionUpdate
	EventBrokerPositionUpdate

	eventKindCount
)

// EventKindCount is the number of defined event kinds.
const EventKindCount = int(eventKindCount)

func (k EventKind) String() string {
	switch k {
	case EventLevel1Update:
		return "level1_update"
	case EventLevel1Tick:
		return "level1_tick"
	case EventTrade:
		return "trade"
	case EventBar:
		return "bar"
	case EventBookUpdate:
		return "book_update"
	case EventPositionUpdate:
		return "position_update"
	case EventBrokerPositionUpdate:
		return "broker_position_update"
	default:
		return "unknown"
	}
}
