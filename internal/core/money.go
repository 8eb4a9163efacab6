// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing goes through shopspring/decimal
// so that "12.345" rounds the same way on every path.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// ParseAmount converts user input to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Zero is allowed; negative
// values and anything that is not a plain decimal number are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// CoerceAmount turns whatever a store sent as an amount into cents. Values
// that are not finite numbers become zero: the transaction is still shown and
// still counted, just with nothing in it.
func CoerceAmount(v any) Money {
	switch x := v.(type) {
	case nil:
		return Money{}
	case Money:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Money{}
		}
		m, err := fromDecimal(decimal.NewFromFloat(x))
		if err != nil {
			return Money{}
		}
		return m
	case float32:
		return CoerceAmount(float64(x))
	case int:
		return Money{Cents: int64(x) * 100}
	case int64:
		return Money{Cents: x * 100}
	case json.Number:
		return coerceString(x.String())
	case string:
		return coerceString(x)
	default:
		return Money{}
	}
}

func coerceString(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	m, err := fromDecimal(d)
	if err != nil {
		return Money{}
	}
	return m
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt64/100)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount as a decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the value in major units for display and charting.
// Use cents for calculations.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount without trailing zeros ("12.5", "4043").
func (m Money) String() string {
	return m.Decimal().String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		*m = CoerceAmount(unq)
		return nil
	}
	*m = CoerceAmount(json.Number(s))
	return nil
}
