package domain

import "github.com/shopspring/decimal"

// CartLine is one requested item in a checkout call. Multiple lines
// may reference the same (product, size) variant.
type CartLine struct {
	ProductID int64
	Size      Size
	Quantity  int
}

// Key returns the variant the line draws stock from.
func (l CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Size: l.Size}
}

// ReceiptLine is the priced snapshot of one cart line. Values are
// captured at checkout time; later catalog changes never affect a
// completed receipt.
type ReceiptLine struct {
	ProductID      int64
	Name           string
	Size           Size
	Quantity       int
	UnitPrice      decimal.Decimal // original unit price, 2 decimals
	DiscountPct    int             // percentage applied
	UnitPriceFinal decimal.Decimal // after discount, 2 decimals
	Subtotal       decimal.Decimal // UnitPriceFinal * Quantity, 2 decimals
}

// Receipt is the result of a successful checkout. Lines keep the
// original request order.
type Receipt struct {
	Lines []ReceiptLine
	Total decimal.Decimal
}
