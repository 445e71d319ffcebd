package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Generator drives simulated securities with a deterministic synthetic
// stream of level-1 updates and trades.
type Generator struct {
	securities []*SimSecurity
	basePrice  decimal.Decimal
	spread     decimal.Decimal
	size       decimal.Decimal
	step       int
}

// NewGenerator creates a generator over the given securities.
func NewGenerator(securities []*SimSecurity, basePrice, spread, size decimal.Decimal) (*Generator, error) {
	if len(securities) == 0 {
		return nil, fmt.Errorf("generator has no securities")
	}
	if !basePrice.IsPositive() {
		return nil, fmt.Errorf("base price must be positive, got %s", basePrice)
	}
	if spread.IsNegative() {
		return nil, fmt.Errorf("spread must not be negative, got %s", spread)
	}
	if !size.IsPositive() {
		size = decimal.NewFromInt(1)
	}
	return &Generator{
		securities: securities,
		basePrice:  basePrice,
		spread:     spread,
		size:       size,
	}, nil
}

// Step pushes the next synthetic update: a level-1 refresh on every step and
// a trade print every fourth step.
func (g *Generator) Step() {
	idx := g.step % len(g.securities)
	security := g.securities[idx]
	g.step++

	// Price walks a small deterministic sawtooth around the base.
	offset := decimal.NewFromInt(int64(g.step % 7)).Sub(decimal.NewFromInt(3))
	mid := g.basePrice.Add(offset)
	bid := mid.Sub(g.spread)
	ask := mid.Add(g.spread)
	security.SetLevel1(bid, ask, mid)

	if g.step%4 == 0 {
		side := schema.OrderSideBuy
		if g.step%8 == 0 {
			side = schema.OrderSideSell
		}
		security.PushTrade(Trade{Price: mid, Qty: g.size, Side: side})
	}
}
