package dispatch

import (
	"time"

	"main/internal/market"
)

// Event tuples pair the payload with the target subscriber and the enqueue
// time, so the worker can measure queue-to-handler latency per delivery.

type level1UpdateEvent struct {
	subscriber Subscriber
	security   market.Security
	enqueued   time.Time
}

type level1TickEvent struct {
	subscriber Subscriber
	security   market.Security
	tick       market.Tick
	enqueued   time.Time
}

type tradeEvent struct {
	subscriber Subscriber
	security   market.Security
	trade      market.Trade
	enqueued   time.Time
}

type barEvent struct {
	subscriber Subscriber
	security   market.Security
	bar        market.Bar
	enqueued   time.Time
}

type bookUpdateEvent struct {
	subscriber Subscriber
	security   market.Security
	book       market.Book
	enqueued   time.Time
}

type positionUpdateEvent struct {
	subscriber Subscriber
	position   Position
	enqueued   time.Time
}

type brokerPositionUpdateEvent struct {
	subscriber Subscriber
	security   market.Security
	position   market.BrokerPosition
	enqueued   time.Time
}
