// Package money provides fixed-point helpers for financial figures.
package money

import "github.com/shopspring/decimal"

// Cents is the number of decimal places kept for monetary amounts.
const Cents int32 = 2

var hundred = decimal.NewFromInt(100)

// Quantize rounds to cents using banker's rounding.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Cents)
}

// Format renders a quantized amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return Quantize(d).StringFixed(Cents)
}

// FormatPtr formats an optional amount; nil stays nil.
func FormatPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := Format(*d)
	return &s
}

// SafeDiv divides n by d, returning fallback when d is zero.
func SafeDiv(n, d, fallback decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return fallback
	}
	return n.Div(d)
}

// PercentOf returns part/whole*100, or zero when whole is zero.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// ApplyPercent returns amount*pct/100.
func ApplyPercent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// PercentChange returns (current-previous)/previous*100. A zero previous value
// yields nil: the change is undefined rather than zero or infinite.
func PercentChange(current, previous decimal.Decimal) *decimal.Decimal {
	if previous.IsZero() {
		return nil
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred)
	return &pct
}

// CeilDiv returns ceil(n/d) as an integer. Non-positive numerators and
// denominators yield zero.
func CeilDiv(n, d decimal.Decimal) int64 {
	if n.Sign() <= 0 || d.Sign() <= 0 {
		return 0
	}
	return n.Div(d).Ceil().IntPart()
}

// Parse reads a decimal string, treating blank input as zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
