package broker

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/pkg/exception"
)

// Script decides the transitions a simulated order goes through. The
// returned updates are delivered in order on the sender's goroutine.
type Script func(req OrderRequest) []StatusUpdate

// SimAdapter is an in-process broker used by tests and the simulated
// runtime. The default script acknowledges and fully fills every order at
// its limit price.
type SimAdapter struct {
	name      string
	connected atomic.Bool

	mu     sync.Mutex
	script Script
	sent   []OrderRequest
}

// NewSimAdapter creates a connected simulated adapter.
func NewSimAdapter(name string) *SimAdapter {
	a := &SimAdapter{name: name}
	a.connected.Store(true)
	return a
}

// Name returns the adapter name.
func (a *SimAdapter) Name() string {
	return a.name
}

// SetConnected toggles the simulated connection.
func (a *SimAdapter) SetConnected(connected bool) {
	a.connected.Store(connected)
}

// SetScript replaces the outcome script. A nil script restores the default
// full fill.
func (a *SimAdapter) SetScript(script Script) {
	a.mu.Lock()
	a.script = script
	a.mu.Unlock()
}

// Sent returns a copy of every request the adapter accepted.
func (a *SimAdapter) Sent() []OrderRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]OrderRequest, len(a.sent))
	copy(out, a.sent)
	return out
}

// Send records the request and plays the scripted transitions through cb.
func (a *SimAdapter) Send(req OrderRequest, cb StatusCallback) error {
	if !a.connected.Load() {
		return exception.ErrAdapterNotConnected
	}
	a.mu.Lock()
	a.sent = append(a.sent, req)
	script := a.script
	a.mu.Unlock()

	updates := FullFill(req)
	if script != nil {
		updates = script(req)
	}
	for _, update := range updates {
		cb(update)
	}
	return nil
}

// FullFill is the default script: submit, then fill the whole quantity at
// the order's limit price.
func FullFill(req OrderRequest) []StatusUpdate {
	return []StatusUpdate{
		{Status: schema.OrderStatusSubmitted, RemainingQty: req.Qty},
		{Status: schema.OrderStatusFilled, TradeQty: req.Qty, TradePrice: req.Price, RemainingQty: decimal.Zero},
	}
}

// PartialFillThenCancel fills half the quantity at the limit price and
// cancels the rest.
func PartialFillThenCancel(req OrderRequest) []StatusUpdate {
	half := req.Qty.Div(decimal.NewFromInt(2))
	rest := req.Qty.Sub(half)
	return []StatusUpdate{
		{Status: schema.OrderStatusSubmitted, RemainingQty: req.Qty},
		{Status: schema.OrderStatusFilled, TradeQty: half, TradePrice: req.Price, RemainingQty: rest},
		{Status: schema.OrderStatusCancelled, RemainingQty: rest},
	}
}

// Reject refuses the order at the broker without any fill.
func Reject(req OrderRequest) []StatusUpdate {
	return []StatusUpdate{
		{Status: schema.OrderStatusError, RemainingQty: req.Qty},
	}
}
