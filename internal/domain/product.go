package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Checkout treats products as read-only:
// price and discount are owned by product management and only
// snapshotted into receipts.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	DiscountPct int // percentage 0-90, 0 means no discount
	CategoryID  int64
	ImageID     *int64
}

// Category groups products. Read-only here.
type Category struct {
	ID   int64
	Name string
}

// Variant is the (product, size) inventory unit. Stock is the only
// mutable shared state in the checkout core and may only change
// through a locked decrement inside a checkout transaction.
type Variant struct {
	ProductID int64
	Size      Size
	Stock     int
}

// Key returns the variant's identity.
func (v Variant) Key() VariantKey {
	return VariantKey{ProductID: v.ProductID, Size: v.Size}
}

// VariantKey identifies one (product, size) stock row.
type VariantKey struct {
	ProductID int64
	Size      Size
}

// Less defines the global lock-acquisition order: product id first,
// then size display order. Every transaction locks variants in this
// order, which rules out deadlocks between overlapping carts.
func (k VariantKey) Less(other VariantKey) bool {
	if k.ProductID != other.ProductID {
		return k.ProductID < other.ProductID
	}
	return k.Size.Order() < other.Size.Order()
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%d/%s", k.ProductID, k.Size)
}
