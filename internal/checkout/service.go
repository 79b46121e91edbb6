// Package checkout reserves stock and prices a cart inside one atomic
// transaction. It is the only place in the backend where shared state
// (variant stock) is mutated.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Facubm01/ocaso/internal/cart"
	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/pricing"
	"github.com/Facubm01/ocaso/internal/store"
)

// Service orchestrates one checkout call: aggregate, lock, validate,
// decrement, price, commit.
type Service struct {
	catalog   store.ProductCatalog
	inventory store.InventoryStore
	logger    *zap.Logger
	metrics   *Metrics
}

// NewService wires the checkout orchestrator. logger and metrics may
// be nil.
func NewService(catalog store.ProductCatalog, inventory store.InventoryStore, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:   catalog,
		inventory: inventory,
		logger:    logger,
		metrics:   metrics,
	}
}

// Checkout atomically reserves stock for every line and returns the
// priced receipt, lines in request order. On any failure the whole
// transaction rolls back and no stock change is persisted.
func (s *Service) Checkout(ctx context.Context, lines []domain.CartLine) (*domain.Receipt, error) {
	start := time.Now()
	receipt, err := s.checkout(ctx, lines)
	s.observe(lines, err, time.Since(start))
	return receipt, err
}

func (s *Service) checkout(ctx context.Context, lines []domain.CartLine) (*domain.Receipt, error) {
	demand, err := cart.Aggregate(lines)
	if err != nil {
		return nil, err
	}

	// Resolve every referenced product once, before any lock is taken.
	products := make(map[int64]*domain.Product, len(demand))
	for _, id := range demand.ProductIDs() {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve product %d: %w", id, err)
		}
		products[id] = p
	}

	tx, err := s.inventory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin inventory transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock every distinct variant in the global key order and check
	// the aggregated demand against its stock. Validating the summed
	// quantity here is what rejects a cart whose combined lines
	// exceed stock even when each line alone would fit.
	locked := make(map[domain.VariantKey]*domain.Variant, len(demand))
	for _, key := range demand.SortedKeys() {
		v, err := tx.LockVariant(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lock variant %s: %w", key, err)
		}
		if requested := demand[key]; v.Stock < requested {
			return nil, &InsufficientStockError{
				ProductID: key.ProductID,
				Size:      key.Size,
				Available: v.Stock,
				Requested: requested,
			}
		}
		locked[key] = v
	}

	// Decrement per original line against the shared in-transaction
	// record, so the receipt keeps per-line detail while the sum of
	// decrements equals the validated aggregate.
	receipt := &domain.Receipt{
		Lines: make([]domain.ReceiptLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		v := locked[line.Key()]
		v.Stock -= line.Quantity

		p := products[line.ProductID]
		discount := clampDiscount(p.DiscountPct)
		unitPrice := p.Price.Round(2)
		unitFinal, subtotal := pricing.Quote(unitPrice, discount, line.Quantity)

		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ProductID:      p.ID,
			Name:           p.Name,
			Size:           line.Size,
			Quantity:       line.Quantity,
			UnitPrice:      unitPrice,
			DiscountPct:    discount,
			UnitPriceFinal: unitFinal,
			Subtotal:       subtotal,
		})
		receipt.Total = receipt.Total.Add(subtotal)
	}
	receipt.Total = receipt.Total.Round(2)

	for _, key := range demand.SortedKeys() {
		if err := tx.SaveVariant(ctx, locked[key]); err != nil {
			return nil, fmt.Errorf("save variant %s: %w", key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	return receipt, nil
}

// clampDiscount bounds a stored discount to [0,90]. Product
// management enforces the bound on write; checkout re-clamps rather
// than trusting it, so a bad row can never produce a negative price.
func clampDiscount(d int) int {
	if d < 0 {
		return 0
	}
	if d > 90 {
		return 90
	}
	return d
}

func (s *Service) observe(lines []domain.CartLine, err error, elapsed time.Duration) {
	result := outcome(err)
	if s.metrics != nil {
		s.metrics.Checkouts.WithLabelValues(result).Inc()
		s.metrics.Duration.Observe(elapsed.Seconds())
	}
	if err != nil {
		s.logger.Info("checkout rejected",
			zap.String("outcome", result),
			zap.Int("lines", len(lines)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	s.logger.Info("checkout committed",
		zap.Int("lines", len(lines)),
		zap.Duration("elapsed", elapsed))
}
