// Package cart validates raw checkout input and aggregates it into
// per-variant demand.
package cart

import (
	"errors"
	"sort"

	"github.com/Facubm01/ocaso/internal/domain"
)

// Validation errors surfaced before any catalog or inventory access.
var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Demand maps every distinct variant to the total quantity requested
// across all cart lines. Built once per checkout attempt.
type Demand map[domain.VariantKey]int

// Aggregate groups cart lines by variant and sums their quantities.
// It fails on an empty cart or any non-positive quantity; in that case
// the whole checkout must be rejected without touching stock.
func Aggregate(lines []domain.CartLine) (Demand, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	demand := make(Demand, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		demand[line.Key()] += line.Quantity
	}
	return demand, nil
}

// SortedKeys returns the demand's variant keys in the global lock
// order (product id, then size). Locking in this fixed order prevents
// deadlocks between transactions with overlapping variants.
func (d Demand) SortedKeys() []domain.VariantKey {
	keys := make([]domain.VariantKey, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// ProductIDs returns the distinct product ids referenced by the
// demand, in lock order.
func (d Demand) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(d))
	var ids []int64
	for _, key := range d.SortedKeys() {
		if _, ok := seen[key.ProductID]; ok {
			continue
		}
		seen[key.ProductID] = struct{}{}
		ids = append(ids, key.ProductID)
	}
	return ids
}
