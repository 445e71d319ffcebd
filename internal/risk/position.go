package risk

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Position is the fund-position ledger entry of one currency inside one
// scope. It is shared by reference across every symbol whose base or quote
// currency matches and is only ever mutated through the owning scope's
// check/confirm sequence, under the scope lock.
type Position struct {
	currency   schema.Currency
	shortLimit decimal.Decimal
	longLimit  decimal.Decimal
	position   decimal.Decimal
}

func newPosition(currency schema.Currency, limits CurrencyConfig) *Position {
	return &Position{
		currency:   currency,
		shortLimit: limits.ShortLimit,
		longLimit:  limits.LongLimit,
	}
}

// Currency returns the currency this position accounts for.
func (p *Position) Currency() schema.Currency {
	return p.currency
}

// fits reports whether the balance stays within [-shortLimit, +longLimit].
// A zero limit leaves that direction unlimited.
func (p *Position) fits(balance decimal.Decimal) bool {
	if p.longLimit.IsPositive() && balance.GreaterThan(p.longLimit) {
		return false
	}
	if p.shortLimit.IsPositive() && balance.Neg().GreaterThan(p.shortLimit) {
		return false
	}
	return true
}
