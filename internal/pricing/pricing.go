// Package pricing computes discounted prices for checkout receipts.
// All arithmetic is fixed-point decimal with round-half-up; money
// never touches binary floating point.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Quote computes the discounted unit price and the line subtotal for
// a quantity of one product. discountPct must already be within
// [0,90]; the caller owns that bound. The intermediate division keeps
// full precision and only the final values are rounded to 2 decimals,
// half up.
func Quote(unitPrice decimal.Decimal, discountPct int, quantity int) (unitFinal, subtotal decimal.Decimal) {
	unitFinal = unitPrice.
		Mul(decimal.NewFromInt(int64(100 - discountPct))).
		Div(hundred).
		Round(2)
	subtotal = unitFinal.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	return unitFinal, subtotal
}
