package checkout

import (
	"fmt"

	"github.com/Facubm01/ocaso/internal/domain"
)

// InsufficientStockError reports that a variant's locked stock cannot
// cover the aggregated demand of the cart. Available and Requested
// refer to the whole cart's demand for the variant, not a single line.
type InsufficientStockError struct {
	ProductID int64
	Size      domain.Size
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d size %s (available=%d, requested=%d)",
		e.ProductID, e.Size, e.Available, e.Requested)
}
