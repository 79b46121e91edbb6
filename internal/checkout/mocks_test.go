package checkout

import (
	"context"
	"sync/atomic"

	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/store"
)

// mockCatalog implements store.ProductCatalog over a fixed product
// map and counts lookups.
type mockCatalog struct {
	products map[int64]domain.Product
	getCalls atomic.Int32
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.getCalls.Add(1)
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockCatalog) ListAvailableProducts(_ context.Context, _ *int64) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockCatalog) ListVariants(_ context.Context, _ int64) ([]domain.Variant, error) {
	return nil, nil
}

func (m *mockCatalog) ListCategories(_ context.Context) ([]*domain.Category, error) {
	return nil, nil
}

// countingInventory delegates to a real MemoryStore and counts opened
// transactions.
type countingInventory struct {
	*store.MemoryStore
	beginCalls atomic.Int32
}

func (c *countingInventory) Begin(ctx context.Context) (store.InventoryTx, error) {
	c.beginCalls.Add(1)
	return c.MemoryStore.Begin(ctx)
}
