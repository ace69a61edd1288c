// Package view renders portfolio data as markdown and holds the small bits
// of interaction state the terminal UI needs.
package view

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const currency = money.USD

// USD formats d as dollars and cents, rounded half away from zero.
func USD(d decimal.Decimal) string {
	cur := *money.New(0, currency).Currency()
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Price formats unit prices. Sub-dollar prices keep more digits than a
// currency amount would.
func Price(d decimal.Decimal) string {
	if d.Abs().LessThan(decimal.NewFromInt(1)) && !d.IsZero() {
		return "$" + d.Round(6).String()
	}
	return USD(d)
}

// Percent formats p, already in percent, with a sign.
func Percent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.IsPositive() {
		return "+" + s
	}
	return s
}

// Fraction formats a ratio such as 0.25 as a percentage.
func Fraction(f decimal.Decimal) string {
	return Percent(f.Shift(2))
}
