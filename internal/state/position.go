// Package state tracks broker-reported positions per symbol and persists
// them as snapshots across restarts.
package state

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/market"
	"main/internal/schema"
)

// PositionBook holds the net broker position of every traded symbol.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]decimal.Decimal
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]decimal.Decimal)}
}

// ApplyFill shifts the position by a fill and returns the new quantity.
func (b *PositionBook) ApplyFill(symbol schema.Symbol, side schema.OrderSide, qty decimal.Decimal) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.positions[symbol.Name]
	switch side {
	case schema.OrderSideBuy:
		current = current.Add(qty)
	case schema.OrderSideSell:
		current = current.Sub(qty)
	}
	b.positions[symbol.Name] = current
	return current
}

// ApplyBrokerReport reconciles one broker position report. Initial reports
// replace whatever the book holds; incremental ones shift it.
func (b *PositionBook) ApplyBrokerReport(symbol schema.Symbol, report market.BrokerPosition) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := report.Qty
	if !report.IsInitial {
		next = b.positions[symbol.Name].Add(report.Qty)
	}
	b.positions[symbol.Name] = next
	return next
}

// Position returns the current position of a symbol.
func (b *PositionBook) Position(symbol schema.Symbol) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.positions[symbol.Name]
}

// Count returns the number of tracked symbols.
func (b *PositionBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}
