// Package risk implements pre- and post-trade risk control: per-scope fund
// ledgers with short/long limits, order parameter bounds, order flood
// control and aggregate pnl / win-ratio checks. Every order is checked
// against both its own scope and the global scope.
package risk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"main/internal/core"
	"main/internal/schema"
)

// GlobalScopeName is the name of the always-present scope with index 0.
const GlobalScopeName = "Global"

// OperationID is the opaque token binding one reservation to its later
// confirmations. Monotonically increasing, never reused.
type OperationID uint64

// Control owns the global scope and any named local scopes, and serves the
// order check/confirm entry points of the trading pipeline.
type Control struct {
	ctx     *core.Context
	profile Profile
	opSeq   atomic.Uint64

	mu       sync.Mutex
	scopes   []*Scope
	contexts []*SymbolContext
}

// NewControl creates a risk control with its global scope.
func NewControl(ctx *core.Context, globalCfg ScopeConfig, profile Profile) (*Control, error) {
	global, err := newScope(ctx, GlobalScopeName, 0, globalCfg, profile)
	if err != nil {
		return nil, fmt.Errorf("global scope: %w", err)
	}
	return &Control{
		ctx:     ctx,
		profile: profile,
		scopes:  []*Scope{global},
	}, nil
}

// GlobalScope returns the scope with index 0.
func (c *Control) GlobalScope() *Scope {
	return c.scopes[0]
}

// CreateScope creates a named local scope and extends every existing symbol
// context with it. Setup-phase operation.
func (c *Control) CreateScope(name string, cfg ScopeConfig) (*Scope, error) {
	if name == "" {
		return nil, fmt.Errorf("scope name is empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.scopes {
		if s.name == name {
			return nil, fmt.Errorf("scope already exists: %s", name)
		}
	}
	scope, err := newScope(c.ctx, name, len(c.scopes), cfg, c.profile)
	if err != nil {
		return nil, fmt.Errorf("scope %s: %w", name, err)
	}
	c.scopes = append(c.scopes, scope)
	for _, symCtx := range c.contexts {
		symCtx.addScope(scope)
	}
	return scope, nil
}

// CreateSymbolContext creates the risk handle of one symbol, covering every
// scope known so far. Setup-phase operation.
func (c *Control) CreateSymbolContext(symbol schema.Symbol) (*SymbolContext, error) {
	if symbol.Name == "" || symbol.Base == "" || symbol.Quote == "" {
		return nil, fmt.Errorf("incomplete symbol: %+v", symbol)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	symCtx := &SymbolContext{symbol: symbol}
	for _, scope := range c.scopes {
		symCtx.addScope(scope)
	}
	c.contexts = append(c.contexts, symCtx)
	return symCtx, nil
}

// CheckNewBuyOrder validates and reserves funds for a buy order in the
// given scope and the global scope. The local scope is checked first; if
// the global scope then rejects, the local reservation is released so a
// failed check never leaves funds reserved.
func (c *Control) CheckNewBuyOrder(scope *Scope, symCtx *SymbolContext, qty, price decimal.Decimal) (OperationID, error) {
	return c.checkNewOrder(scope, symCtx, schema.OrderSideBuy, qty, price)
}

// CheckNewSellOrder is the sell-side counterpart of CheckNewBuyOrder.
func (c *Control) CheckNewSellOrder(scope *Scope, symCtx *SymbolContext, qty, price decimal.Decimal) (OperationID, error) {
	return c.checkNewOrder(scope, symCtx, schema.OrderSideSell, qty, price)
}

func (c *Control) checkNewOrder(scope *Scope, symCtx *SymbolContext, side schema.OrderSide, qty, price decimal.Decimal) (OperationID, error) {
	if scope == nil {
		scope = c.GlobalScope()
	}
	if !qty.IsPositive() || price.IsNegative() {
		return 0, fmt.Errorf("invalid order arguments: qty %s price %s", qty, price)
	}

	op := OperationID(c.opSeq.Add(1))

	local := symCtx.state(scope.index)
	if err := scope.checkNewOrder(local, side, qty, price); err != nil {
		return 0, err
	}
	if global := c.GlobalScope(); scope != global {
		if err := global.checkNewOrder(symCtx.state(0), side, qty, price); err != nil {
			scope.releaseReservation(local, side, qty, price)
			return 0, err
		}
	}
	return op, nil
}

// ConfirmBuyOrder reconciles a buy reservation with one status callback.
// Scope visit order is global first, then local; the reverse of the check
// path.
func (c *Control) ConfirmBuyOrder(op OperationID, status schema.OrderStatus, scope *Scope, symCtx *SymbolContext,
	orderPrice, tradeQty, tradePrice, remainingQty decimal.Decimal) error {
	return c.confirmOrder(op, status, scope, symCtx, schema.OrderSideBuy, orderPrice, tradeQty, tradePrice, remainingQty)
}

// ConfirmSellOrder is the sell-side counterpart of ConfirmBuyOrder.
func (c *Control) ConfirmSellOrder(op OperationID, status schema.OrderStatus, scope *Scope, symCtx *SymbolContext,
	orderPrice, tradeQty, tradePrice, remainingQty decimal.Decimal) error {
	return c.confirmOrder(op, status, scope, symCtx, schema.OrderSideSell, orderPrice, tradeQty, tradePrice, remainingQty)
}

func (c *Control) confirmOrder(op OperationID, status schema.OrderStatus, scope *Scope, symCtx *SymbolContext,
	side schema.OrderSide, orderPrice, tradeQty, tradePrice, remainingQty decimal.Decimal) error {
	if scope == nil {
		scope = c.GlobalScope()
	}

	c.ctx.TradingLog().Write("risk", "confirm order", map[string]any{
		"operation":    uint64(op),
		"scope":        scope.name,
		"symbol":       symCtx.symbol.Name,
		"side":         side.String(),
		"status":       status.String(),
		"orderPrice":   orderPrice.String(),
		"tradeQty":     tradeQty.String(),
		"tradePrice":   tradePrice.String(),
		"remainingQty": remainingQty.String(),
	})

	if global := c.GlobalScope(); scope != global {
		if err := global.confirmOrder(symCtx.state(0), side, status, orderPrice, tradeQty, tradePrice, remainingQty); err != nil {
			return err
		}
	}
	return scope.confirmOrder(symCtx.state(scope.index), side, status, orderPrice, tradeQty, tradePrice, remainingQty)
}
