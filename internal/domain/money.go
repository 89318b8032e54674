package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseMoney parses a non-negative decimal amount such as "10000" or "150.25".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must be >= 0, got %s", s)
	}
	return d, nil
}

// Notional returns price × quantity.
func Notional(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// JSONNumber renders d as a bare JSON number. decimal.Decimal marshals as a
// quoted string by default, which the wire protocols do not accept.
func JSONNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
