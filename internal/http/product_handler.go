package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Facubm01/ocaso/internal/catalog"
	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/store"
)

type ProductHandler struct {
	catalog *catalog.Service
	timeout time.Duration
}

func NewProductHandler(catalog *catalog.Service, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	DiscountPct int             `json:"discount_pct"`
	CategoryID  int64           `json:"category_id"`
	ImageID     *int64          `json:"image_id,omitempty"`
}

type SizeStockDTO struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type ProductDetailDTO struct {
	ProductDTO
	Sizes []SizeStockDTO `json:"sizes"`
}

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		DiscountPct: p.DiscountPct,
		CategoryID:  p.CategoryID,
		ImageID:     p.ImageID,
	}
}

// GET /api/v1/products?category={id}
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var categoryID *int64
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_category", "category must be an integer id")
			return
		}
		categoryID = &id
	}

	products, err := h.catalog.ListAvailableProducts(ctx, categoryID)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondError(w, http.StatusNotFound, "category_not_found", "category does not exist")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}

	out := make([]ProductDTO, len(products))
	for i, p := range products {
		out[i] = toProductDTO(p)
	}
	respondJSON(w, http.StatusOK, out)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be an integer")
		return
	}

	p, variants, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product does not exist")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	detail := ProductDetailDTO{ProductDTO: toProductDTO(p), Sizes: make([]SizeStockDTO, len(variants))}
	for i, v := range variants {
		detail.Sizes[i] = SizeStockDTO{Size: string(v.Size), Stock: v.Stock}
	}
	respondJSON(w, http.StatusOK, detail)
}

// GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list categories")
		return
	}

	out := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		out[i] = CategoryDTO{ID: c.ID, Name: c.Name}
	}
	respondJSON(w, http.StatusOK, out)
}
