package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/pkg/exception"
)

// SideConfig bounds price and quantity for one order direction. A zero
// bound disables that check.
type SideConfig struct {
	MinPrice decimal.Decimal `json:"minPrice"`
	MaxPrice decimal.Decimal `json:"maxPrice"`
	MinQty   decimal.Decimal `json:"minQty"`
	MaxQty   decimal.Decimal `json:"maxQty"`
}

// SymbolConfig holds the per-side bounds of one symbol inside a scope.
type SymbolConfig struct {
	Buy  SideConfig `json:"buy"`
	Sell SideConfig `json:"sell"`
}

// CurrencyConfig limits the fund position of one currency inside a scope.
// Zero disables the limit.
type CurrencyConfig struct {
	ShortLimit decimal.Decimal `json:"shortLimit"`
	LongLimit  decimal.Decimal `json:"longLimit"`
}

// FloodControlConfig configures the sliding-window order rate limit.
type FloodControlConfig struct {
	PeriodMs  int64 `json:"periodMs"`
	MaxNumber int   `json:"maxNumber"`
}

// Period returns the window length.
func (c FloodControlConfig) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// PnlConfig bounds the aggregate result to [-loss, +profit].
type PnlConfig struct {
	Loss   decimal.Decimal `json:"loss"`
	Profit decimal.Decimal `json:"profit"`
}

// WinRatioConfig bounds the aggregate win ratio in percent.
type WinRatioConfig struct {
	FirstOperationsToSkip uint64 `json:"firstOperationsToSkip"`
	Min                   uint   `json:"min"`
}

// ScopeConfig is the full risk configuration of one scope.
type ScopeConfig struct {
	FloodControl FloodControlConfig                   `json:"floodControl"`
	Pnl          *PnlConfig                           `json:"pnl,omitempty"`
	WinRatio     *WinRatioConfig                      `json:"winRatio,omitempty"`
	Commission   decimal.Decimal                      `json:"commission"`
	Symbols      map[string]SymbolConfig              `json:"symbols,omitempty"`
	Currencies   map[schema.Currency]CurrencyConfig   `json:"currencies,omitempty"`
}

func (c ScopeConfig) validate() error {
	if c.FloodControl.PeriodMs <= 0 {
		return fmt.Errorf("%w: flood control period must be positive, got %dms",
			exception.ErrWrongSettings, c.FloodControl.PeriodMs)
	}
	if c.FloodControl.MaxNumber <= 0 {
		return fmt.Errorf("%w: flood control max number must be positive, got %d",
			exception.ErrWrongSettings, c.FloodControl.MaxNumber)
	}
	if c.Commission.IsNegative() {
		return fmt.Errorf("%w: commission rate must not be negative, got %s",
			exception.ErrWrongSettings, c.Commission)
	}
	if c.Pnl != nil {
		if !c.Pnl.Loss.IsPositive() || !c.Pnl.Profit.IsPositive() {
			return fmt.Errorf("%w: pnl bounds must be positive, got loss %s profit %s",
				exception.ErrWrongSettings, c.Pnl.Loss, c.Pnl.Profit)
		}
	}
	if c.WinRatio != nil {
		if c.WinRatio.Min == 0 || c.WinRatio.Min > 100 {
			return fmt.Errorf("%w: win ratio min must be in (0, 100], got %d",
				exception.ErrWrongSettings, c.WinRatio.Min)
		}
	}
	for name, sym := range c.Symbols {
		if err := sym.Buy.validate(); err != nil {
			return fmt.Errorf("%w: symbol %s buy side: %v",
				exception.ErrWrongSettings, name, err)
		}
		if err := sym.Sell.validate(); err != nil {
			return fmt.Errorf("%w: symbol %s sell side: %v",
				exception.ErrWrongSettings, name, err)
		}
	}
	for currency, limits := range c.Currencies {
		if limits.ShortLimit.IsNegative() || limits.LongLimit.IsNegative() {
			return fmt.Errorf("%w: currency %s limits must not be negative",
				exception.ErrWrongSettings, currency)
		}
	}
	return nil
}

func (c SideConfig) validate() error {
	if c.MinPrice.IsNegative() || c.MaxPrice.IsNegative() ||
		c.MinQty.IsNegative() || c.MaxQty.IsNegative() {
		return fmt.Errorf("bounds must not be negative")
	}
	if c.MaxPrice.IsPositive() && c.MinPrice.GreaterThan(c.MaxPrice) {
		return fmt.Errorf("min price %s is above max price %s", c.MinPrice, c.MaxPrice)
	}
	if c.MaxQty.IsPositive() && c.MinQty.GreaterThan(c.MaxQty) {
		return fmt.Errorf("min qty %s is above max qty %s", c.MinQty, c.MaxQty)
	}
	return nil
}
