// Package money converts between decimal amount strings and integer minor
// units (cents). All balances and amounts are carried internally as int64
// minor units so no arithmetic ever touches floating point.
package money

import (
	"strings"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a plain decimal string such as "12.34" into minor
// units (1234). Input that is not a positive plain-form decimal with at most
// two fraction digits, or whose minor-unit value does not fit in an int64,
// fails with pkg.ErrInvalidAmount before any store is touched.
func ParseAmount(s string) (int64, error) {
	// Plain form only; exponent notation is not part of the API contract.
	if strings.ContainsAny(s, "eE") {
		return 0, pkg.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, pkg.ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return 0, pkg.ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, pkg.ErrInvalidAmount
	}
	minor := d.Shift(2)
	if !minor.BigInt().IsInt64() {
		return 0, pkg.ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FormatMinorUnits renders minor units back as a two-decimal string:
// 1234 -> "12.34".
func FormatMinorUnits(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
