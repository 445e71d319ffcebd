package schema

import "fmt"

// Registry stores the known symbol universe in creation order.
type Registry struct {
	symbols      []Symbol
	symbolByName map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{symbolByName: make(map[string]int)}
}

// AddSymbol registers a new symbol.
func (r *Registry) AddSymbol(name string, base, quote Currency) (Symbol, error) {
	if name == "" {
		return Symbol{}, fmt.Errorf("symbol name is empty")
	}
	if base == "" || quote == "" {
		return Symbol{}, fmt.Errorf("symbol currencies are empty: %s", name)
	}
	if base == quote {
		return Symbol{}, fmt.Errorf("symbol base and quote are equal: %s", name)
	}
	if _, ok := r.symbolByName[name]; ok {
		return Symbol{}, fmt.Errorf("symbol already exists: %s", name)
	}
	symbol := Symbol{Name: name, Base: base, Quote: quote}
	r.symbolByName[name] = len(r.symbols)
	r.symbols = append(r.symbols, symbol)
	return symbol, nil
}

// SymbolByName returns the symbol registered under name.
func (r *Registry) SymbolByName(name string) (Symbol, bool) {
	idx, ok := r.symbolByName[name]
	if !ok {
		return Symbol{}, false
	}
	return r.symbols[idx], true
}

// SymbolAt returns the symbol at the given creation index.
func (r *Registry) SymbolAt(i int) (Symbol, bool) {
	if i < 0 || i >= len(r.symbols) {
		return Symbol{}, false
	}
	return r.symbols[i], true
}

// SymbolCount returns the number of registered symbols.
func (r *Registry) SymbolCount() int {
	return len(r.symbols)
}
