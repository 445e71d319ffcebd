package risk

import (
	"main/internal/schema"
)

// scopeSymbolState is the view of one symbol inside one scope: the resolved
// side bounds plus the shared base/quote currency positions.
type scopeSymbolState struct {
	scope  *Scope
	symbol schema.Symbol
	buy    SideConfig
	sell   SideConfig
	base   *Position
	quote  *Position
}

func (st *scopeSymbolState) side(side schema.OrderSide) SideConfig {
	if side == schema.OrderSideSell {
		return st.sell
	}
	return st.buy
}

// SymbolContext is the risk handle of one symbol, created once per symbol by
// Control.CreateSymbolContext and attached to the security. It carries one
// state per known scope, indexed by scope index.
type SymbolContext struct {
	symbol schema.Symbol
	states []*scopeSymbolState
}

// Symbol returns the symbol this context covers.
func (c *SymbolContext) Symbol() schema.Symbol {
	return c.symbol
}

func (c *SymbolContext) state(index int) *scopeSymbolState {
	return c.states[index]
}

func (c *SymbolContext) addScope(scope *Scope) {
	c.states = append(c.states, newScopeSymbolState(scope, c.symbol))
}

func newScopeSymbolState(scope *Scope, symbol schema.Symbol) *scopeSymbolState {
	return &scopeSymbolState{
		scope:  scope,
		symbol: symbol,
		buy:    scope.sideConfig(symbol.Name, schema.OrderSideBuy),
		sell:   scope.sideConfig(symbol.Name, schema.OrderSideSell),
		base:   scope.position(symbol.Base),
		quote:  scope.position(symbol.Quote),
	}
}
