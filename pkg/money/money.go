// Package money canonicalizes monetary values as fixed two-decimal strings.
//
// Loyalty balances and ledger amounts are stored as normalized strings so that
// repeated small increments and decrements never accumulate binary
// floating-point error. Every write goes through Normalize/FromDecimal and
// every read that feeds arithmetic goes through Parse.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the canonical zero amount.
const Zero = "0.00"

// Normalize coerces any float into the canonical fixed-2 string form.
// Non-finite input normalizes to zero.
func Normalize(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Zero
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FromDecimal renders a decimal in the canonical fixed-2 string form.
func FromDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Parse reads a stored amount back into a decimal. Unparseable or empty
// input yields zero; stored amounts are auxiliary state, not worth crashing
// over.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseFloat is Parse for callers that still traffic in floats, with the
// same non-finite handling as Normalize.
func ParseFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
