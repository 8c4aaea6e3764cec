// Package core provides money parsing and handling utilities.
//
// This file contains the signed Money type used by every ledger entry and the
// parser that turns user-entered text into an exact decimal amount.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact signed decimal amount. Positive values are income,
// negative values are expenses.
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Decimal: decimal.Zero}

// NewMoney builds Money from a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Notation names the marks a locale uses when writing numbers: Decimal splits
// the fraction and Group separates thousands.
type Notation struct {
	Decimal string
	Group   string
}

var (
	// DotDecimal is the notation of en-US: 1,500.25.
	DotDecimal = Notation{Decimal: ".", Group: ","}
	// CommaDecimal is the notation of de-DE or it-IT: 1.500,25.
	CommaDecimal = Notation{Decimal: ",", Group: "."}
)

// ParseAmount converts user-entered numeric text written in DotDecimal
// notation into a signed amount. See Notation.ParseAmount.
func ParseAmount(s string) (Money, error) {
	return DotDecimal.ParseAmount(s)
}

// ParseAmount converts user-entered numeric text into a signed amount.
//
// An optional leading sign is accepted. The group mark may appear only between
// whole three-digit groups of the integer part, so a misplaced mark is an
// error instead of being read as a decimal point. No rounding is applied: the
// amount keeps every digit that was typed so that persisting and reloading is
// exact.
//
// Examples with DotDecimal:
//
//	ParseAmount("1500.00")  -> 1500.00, nil
//	ParseAmount("1,500")    -> 1500, nil
//	ParseAmount("12,5")     -> Zero, ErrInvalidAmount
//
// With CommaDecimal "-12,5" is -12.5 and "1.500,00" is 1500.
func (n Notation) ParseAmount(s string) (Money, error) {
	s = normalizeSpaces(strings.TrimSpace(s))
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, n.Decimal)
	if hasFrac && (frac == "" || !allDigits(frac)) {
		return Zero, ErrInvalidAmount
	}
	group := normalizeSpaces(n.Group)
	if group != "" && strings.Contains(intPart, group) {
		var ok bool
		if intPart, ok = ungroup(intPart, group); !ok {
			return Zero, ErrInvalidAmount
		}
	}
	if intPart == "" && !hasFrac {
		return Zero, ErrInvalidAmount
	}
	if intPart != "" && !allDigits(intPart) {
		return Zero, ErrInvalidAmount
	}

	plain := sign + intPart
	if hasFrac {
		plain += "." + frac
	}
	d, err := decimal.NewFromString(plain)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{Decimal: d}, nil
}

// Text writes m without grouping and with n's decimal mark, so that
// n.ParseAmount reads it back exactly.
func (n Notation) Text(m Money) string {
	return strings.Replace(m.String(), ".", n.Decimal, 1)
}

// ungroup drops the group marks from a grouped integer. The leading group has
// one to three digits and the last has exactly three; inner groups may have
// two so that lakh-style grouping (1,00,000) is accepted.
func ungroup(s, mark string) (string, bool) {
	parts := strings.Split(s, mark)
	for i, p := range parts {
		if !allDigits(p) {
			return "", false
		}
		switch {
		case i == 0:
			if len(p) < 1 || len(p) > 3 {
				return "", false
			}
		case i == len(parts)-1:
			if len(p) != 3 {
				return "", false
			}
		default:
			if len(p) != 2 && len(p) != 3 {
				return "", false
			}
		}
	}
	return strings.Join(parts, ""), true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeSpaces folds the no-break spaces some locales group with into a
// plain space, which is what users type.
func normalizeSpaces(s string) string {
	return strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
}

// IsIncome reports whether the amount counts towards income.
func (m Money) IsIncome() bool { return m.Sign() > 0 }

// IsExpense reports whether the amount counts towards expenses.
func (m Money) IsExpense() bool { return m.Sign() < 0 }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Decimal: m.Decimal.Add(o.Decimal)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{Decimal: m.Decimal.Sub(o.Decimal)} }

// Abs returns the magnitude of m.
func (m Money) Abs() Money { return Money{Decimal: m.Decimal.Abs()} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{Decimal: m.Decimal.Neg()} }

// Equal compares values, ignoring representation ("1.50" equals "1.5").
func (m Money) Equal(o Money) bool { return m.Decimal.Equal(o.Decimal) }

// Display returns the amount rounded half away from zero to the given number
// of fraction digits. Used for presentation only; arithmetic stays exact.
func (m Money) Display(places int32) Money {
	return Money{Decimal: m.Decimal.Round(places)}
}

// MarshalJSON writes the amount as an unquoted JSON number carrying every
// stored digit.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalidAmount
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.Decimal = d
	return nil
}
