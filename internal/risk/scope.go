package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/core"
	"main/internal/schema"
	"main/pkg/exception"
)

// Scope is one risk-limit boundary: the global scope (index 0) or a named
// per-strategy scope. All of its mutable state (flood window, currency
// positions) is serialized by one lock.
type Scope struct {
	name  string
	index int
	ctx   *core.Context
	cfg   ScopeConfig

	lk        locker
	flood     *floodControlWindow
	positions map[schema.Currency]*Position
}

func newScope(ctx *core.Context, name string, index int, cfg ScopeConfig, profile Profile) (*Scope, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Scope{
		name:      name,
		index:     index,
		ctx:       ctx,
		cfg:       cfg,
		lk:        newLocker(profile),
		flood:     newFloodControlWindow(cfg.FloodControl.Period(), cfg.FloodControl.MaxNumber),
		positions: make(map[schema.Currency]*Position),
	}, nil
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Index returns the scope index; the global scope is always 0.
func (s *Scope) Index() int {
	return s.index
}

// position returns the shared ledger entry of a currency, creating it
// lazily from the scope configuration. Callers hold the scope lock or run
// during single-threaded setup.
func (s *Scope) position(currency schema.Currency) *Position {
	if p, ok := s.positions[currency]; ok {
		return p
	}
	p := newPosition(currency, s.cfg.Currencies[currency])
	s.positions[currency] = p
	return p
}

func (s *Scope) sideConfig(symbol string, side schema.OrderSide) SideConfig {
	sym := s.cfg.Symbols[symbol]
	if side == schema.OrderSideSell {
		return sym.Sell
	}
	return sym.Buy
}

// orderDeltas returns the signed base and quote currency deltas implied by
// an order. Buys pay commission on top of the quote volume.
func (s *Scope) orderDeltas(side schema.OrderSide, qty, price decimal.Decimal) (base, quote decimal.Decimal) {
	volume := price.Mul(qty)
	switch side {
	case schema.OrderSideBuy:
		return qty, volume.Add(volume.Mul(s.cfg.Commission)).Neg()
	default:
		return qty.Neg(), volume
	}
}

// checkNewOrder runs bound, flood and fund checks for one order and, if all
// pass, commits the reservation and the flood timestamp.
func (s *Scope) checkNewOrder(st *scopeSymbolState, side schema.OrderSide, qty, price decimal.Decimal) error {
	if err := s.checkOrderParams(st, side, qty, price); err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()

	if err := s.checkOrdersFloodLevel(); err != nil {
		return err
	}

	baseDelta, quoteDelta := s.orderDeltas(side, qty, price)
	newBase := st.base.position.Add(baseDelta)
	newQuote := st.quote.position.Add(quoteDelta)

	s.ctx.TradingLog().Write("risk", "new order", map[string]any{
		"scope":    s.name,
		"symbol":   st.symbol.Name,
		"side":     side.String(),
		"qty":      qty.String(),
		"price":    price.String(),
		"basePos":  st.base.position.String(),
		"quotePos": st.quote.position.String(),
		"newBase":  newBase.String(),
		"newQuote": newQuote.String(),
	})

	if !st.base.fits(newBase) {
		return fmt.Errorf("%w: %s position %s would breach limits of scope %q",
			exception.ErrNotEnoughFunds, st.base.currency, newBase, s.name)
	}
	if !st.quote.fits(newQuote) {
		return fmt.Errorf("%w: %s position %s would breach limits of scope %q",
			exception.ErrNotEnoughFunds, st.quote.currency, newQuote, s.name)
	}

	st.base.position = newBase
	st.quote.position = newQuote
	s.flood.append(s.ctx.Now())
	return nil
}

// releaseReservation reverses a reservation committed by checkNewOrder.
// Used to compensate a local-scope commit when the global scope rejects.
func (s *Scope) releaseReservation(st *scopeSymbolState, side schema.OrderSide, qty, price decimal.Decimal) {
	s.lk.Lock()
	defer s.lk.Unlock()

	baseDelta, quoteDelta := s.orderDeltas(side, qty, price)
	st.base.position = st.base.position.Sub(baseDelta)
	st.quote.position = st.quote.position.Sub(quoteDelta)

	s.ctx.TradingLog().Write("risk", "reservation rolled back", map[string]any{
		"scope":  s.name,
		"symbol": st.symbol.Name,
		"side":   side.String(),
		"qty":    qty.String(),
		"price":  price.String(),
	})
}

func (s *Scope) checkOrderParams(st *scopeSymbolState, side schema.OrderSide, qty, price decimal.Decimal) error {
	bounds := st.side(side)
	switch {
	case bounds.MinPrice.IsPositive() && price.LessThan(bounds.MinPrice):
		return fmt.Errorf("%w: price %s is below %s for %s %s order",
			exception.ErrWrongOrderParameter, price, bounds.MinPrice, side, st.symbol.Name)
	case bounds.MaxPrice.IsPositive() && price.GreaterThan(bounds.MaxPrice):
		return fmt.Errorf("%w: price %s is above %s for %s %s order",
			exception.ErrWrongOrderParameter, price, bounds.MaxPrice, side, st.symbol.Name)
	case bounds.MinQty.IsPositive() && qty.LessThan(bounds.MinQty):
		return fmt.Errorf("%w: qty %s is below %s for %s %s order",
			exception.ErrWrongOrderParameter, qty, bounds.MinQty, side, st.symbol.Name)
	case bounds.MaxQty.IsPositive() && qty.GreaterThan(bounds.MaxQty):
		return fmt.Errorf("%w: qty %s is above %s for %s %s order",
			exception.ErrWrongOrderParameter, qty, bounds.MaxQty, side, st.symbol.Name)
	}
	return nil
}

// checkOrdersFloodLevel evicts expired timestamps and rejects once the
// window is full. Called under the scope lock.
func (s *Scope) checkOrdersFloodLevel() error {
	now := s.ctx.Now()
	s.flood.evict(now)

	if s.flood.full() {
		oldest, _ := s.flood.oldest()
		newest, _ := s.flood.newest()
		s.ctx.TradingLog().Write("risk", "orders flood level reached", map[string]any{
			"scope":     s.name,
			"orders":    s.flood.len(),
			"oldest":    oldest.UnixNano(),
			"newest":    newest.UnixNano(),
			"period":    s.cfg.FloodControl.Period().String(),
			"maxNumber": s.cfg.FloodControl.MaxNumber,
		})
		return fmt.Errorf("%w: %d orders in the last %s of scope %q",
			exception.ErrNumberOfOrdersLimit,
			s.flood.len(), s.cfg.FloodControl.Period(), s.name)
	}
	if s.flood.len()+1 >= s.cfg.FloodControl.MaxNumber && s.flood.len() > 0 {
		s.ctx.TradingLog().Write("risk", "orders flood level will be reached with next order", map[string]any{
			"scope":     s.name,
			"orders":    s.flood.len(),
			"period":    s.cfg.FloodControl.Period().String(),
			"maxNumber": s.cfg.FloodControl.MaxNumber,
		})
	}
	return nil
}

// confirmOrder reconciles a reservation with one broker status callback.
func (s *Scope) confirmOrder(st *scopeSymbolState, side schema.OrderSide, status schema.OrderStatus,
	orderPrice, tradeQty, tradePrice, remainingQty decimal.Decimal) error {

	switch status {
	case schema.OrderStatusPending, schema.OrderStatusSubmitted:
		return nil

	case schema.OrderStatusFilled:
		// Replace the order-price reservation of the traded quantity with
		// the realized trade-price delta. The base leg is quantity-only and
		// needs no correction.
		s.lk.Lock()
		defer s.lk.Unlock()
		_, reserved := s.orderDeltas(side, tradeQty, orderPrice)
		_, realized := s.orderDeltas(side, tradeQty, tradePrice)
		st.quote.position = st.quote.position.Sub(reserved).Add(realized)
		s.ctx.TradingLog().Write("risk", "fill confirmed", map[string]any{
			"scope":      s.name,
			"symbol":     st.symbol.Name,
			"side":       side.String(),
			"tradeQty":   tradeQty.String(),
			"orderPrice": orderPrice.String(),
			"tradePrice": tradePrice.String(),
			"quotePos":   st.quote.position.String(),
		})
		return nil

	case schema.OrderStatusCancelled, schema.OrderStatusInactive, schema.OrderStatusError:
		// Return the reserved funds of the unfilled remainder.
		s.lk.Lock()
		defer s.lk.Unlock()
		baseDelta, quoteDelta := s.orderDeltas(side, remainingQty, orderPrice)
		st.base.position = st.base.position.Sub(baseDelta)
		st.quote.position = st.quote.position.Sub(quoteDelta)
		s.ctx.TradingLog().Write("risk", "funds returned", map[string]any{
			"scope":        s.name,
			"symbol":       st.symbol.Name,
			"side":         side.String(),
			"status":       status.String(),
			"remainingQty": remainingQty.String(),
			"orderPrice":   orderPrice.String(),
			"basePos":      st.base.position.String(),
			"quotePos":     st.quote.position.String(),
		})
		return nil

	default:
		return fmt.Errorf("%w: %d on funds confirmation of scope %q",
			exception.ErrUnknownOrderStatus, status, s.name)
	}
}

// CheckTotalPnl verifies the aggregate result stays within [-loss, +profit].
func (s *Scope) CheckTotalPnl(pnl decimal.Decimal) error {
	if s.cfg.Pnl == nil {
		return nil
	}
	if pnl.Neg().GreaterThan(s.cfg.Pnl.Loss) || pnl.GreaterThan(s.cfg.Pnl.Profit) {
		return fmt.Errorf("%w: pnl %s is outside [-%s, +%s] of scope %q",
			exception.ErrPnlIsOutOfRange, pnl, s.cfg.Pnl.Loss, s.cfg.Pnl.Profit, s.name)
	}
	return nil
}

// CheckTotalWinRatio verifies the aggregate win ratio (in percent) once the
// configured warm-up operation count has passed.
func (s *Scope) CheckTotalWinRatio(ratioPercent uint, opsCount uint64) error {
	if s.cfg.WinRatio == nil {
		return nil
	}
	if opsCount < s.cfg.WinRatio.FirstOperationsToSkip {
		return nil
	}
	if ratioPercent < s.cfg.WinRatio.Min {
		return fmt.Errorf("%w: win ratio %d%% is below %d%% of scope %q after %d operations",
			exception.ErrWinRatioIsOutOfRange, ratioPercent, s.cfg.WinRatio.Min, s.name, opsCount)
	}
	return nil
}

// Balance returns the current fund position of a currency. Intended for
// reporting and tests.
func (s *Scope) Balance(currency schema.Currency) decimal.Decimal {
	s.lk.Lock()
	defer s.lk.Unlock()
	if p, ok := s.positions[currency]; ok {
		return p.position
	}
	return decimal.Zero
}
