package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Facubm01/ocaso/internal/cart"
	"github.com/Facubm01/ocaso/internal/checkout"
	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/store"
)

type CheckoutHandler struct {
	service *checkout.Service
	timeout time.Duration
	logger  *zap.Logger
}

func NewCheckoutHandler(service *checkout.Service, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		service: service,
		timeout: timeout,
		logger:  logger,
	}
}

type CheckoutItemDTO struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequestDTO struct {
	Items []CheckoutItemDTO `json:"items"`
}

type CheckoutLineDTO struct {
	ProductID          int64           `json:"product_id"`
	Name               string          `json:"name"`
	Size               string          `json:"size"`
	Quantity           int             `json:"quantity"`
	UnitPriceOriginal  decimal.Decimal `json:"unit_price_original"`
	DiscountPctApplied int             `json:"discount_pct_applied"`
	UnitPriceFinal     decimal.Decimal `json:"unit_price_final"`
	Subtotal           decimal.Decimal `json:"subtotal"`
}

type CheckoutResponseDTO struct {
	Items []CheckoutLineDTO `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		size, err := domain.ParseSize(item.Size)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_size",
				fmt.Sprintf("%q is not a valid size", item.Size))
			return
		}
		lines = append(lines, domain.CartLine{
			ProductID: item.ProductID,
			Size:      size,
			Quantity:  item.Quantity,
		})
	}

	receipt, err := h.service.Checkout(ctx, lines)
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}

	items := make([]CheckoutLineDTO, len(receipt.Lines))
	for i, line := range receipt.Lines {
		items[i] = CheckoutLineDTO{
			ProductID:          line.ProductID,
			Name:               line.Name,
			Size:               string(line.Size),
			Quantity:           line.Quantity,
			UnitPriceOriginal:  line.UnitPrice,
			DiscountPctApplied: line.DiscountPct,
			UnitPriceFinal:     line.UnitPriceFinal,
			Subtotal:           line.Subtotal,
		}
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Items: items, Total: receipt.Total})
}

// respondCheckoutError maps the checkout error taxonomy to stable
// response categories: client input 400, unknown references 404,
// stock conflicts 409.
func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *checkout.InsufficientStockError
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart has no items")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
	case errors.Is(err, store.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "a referenced product does not exist")
	case errors.Is(err, store.ErrVariantNotFound):
		respondError(w, http.StatusNotFound, "variant_not_found", "a referenced product has no stock row for that size")
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, "insufficient_stock",
			fmt.Sprintf("product %d size %s: available=%d, requested=%d",
				stockErr.ProductID, stockErr.Size, stockErr.Available, stockErr.Requested))
	case errors.Is(err, store.ErrLockTimeout):
		// Transient contention; the client may retry the checkout.
		respondError(w, http.StatusConflict, "lock_timeout", "inventory is busy, retry the checkout")
	default:
		h.logger.Error("checkout failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "checkout failed")
	}
}
