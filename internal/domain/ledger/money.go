package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept for monetary values.
const PriceScale = 2

// NormalizePrice rounds p to PriceScale digits and rejects non-positive results.
func NormalizePrice(p decimal.Decimal) (decimal.Decimal, error) {
	p = p.Round(PriceScale)
	if !p.IsPositive() {
		return decimal.Zero, ErrInvalidPrice
	}
	return p, nil
}

// NormalizeName trims surrounding whitespace and rejects empty names.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func ValidateQuantity(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
