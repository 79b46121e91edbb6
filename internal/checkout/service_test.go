package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Facubm01/ocaso/internal/cart"
	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type fixture struct {
	service   *Service
	catalog   *mockCatalog
	inventory *countingInventory
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	catalog := &mockCatalog{products: map[int64]domain.Product{
		1: {ID: 1, Name: "Remera lisa", Price: decimal.RequireFromString("19.99"), DiscountPct: 10, CategoryID: 1},
		2: {ID: 2, Name: "Jean recto", Price: decimal.RequireFromString("49.90"), CategoryID: 2},
	}}
	inventory := &countingInventory{MemoryStore: store.NewMemoryStore(2 * time.Second)}
	inventory.SetStock(domain.VariantKey{ProductID: 1, Size: domain.SizeM}, 10)
	inventory.SetStock(domain.VariantKey{ProductID: 1, Size: domain.SizeL}, 5)
	inventory.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeS}, 3)

	return &fixture{
		service:   NewService(catalog, inventory, nil, nil),
		catalog:   catalog,
		inventory: inventory,
	}
}

func (f *fixture) stock(t *testing.T, productID int64, size domain.Size) int {
	t.Helper()
	stock, err := f.inventory.Stock(domain.VariantKey{ProductID: productID, Size: size})
	require.NoError(t, err)
	return stock
}

func TestCheckout_Success(t *testing.T) {
	f := setupService(t)

	receipt, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 2, Size: domain.SizeS, Quantity: 1},
		{ProductID: 1, Size: domain.SizeM, Quantity: 3},
		{ProductID: 1, Size: domain.SizeM, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, receipt.Lines, 3)

	// Lines keep the original request order, not the lock order.
	assert.Equal(t, int64(2), receipt.Lines[0].ProductID)
	assert.Equal(t, "Jean recto", receipt.Lines[0].Name)
	assert.Equal(t, int64(1), receipt.Lines[1].ProductID)
	assert.Equal(t, 3, receipt.Lines[1].Quantity)
	assert.Equal(t, 2, receipt.Lines[2].Quantity)

	// Product 2: no discount, price passes through unchanged.
	assert.True(t, receipt.Lines[0].UnitPriceFinal.Equal(dec(t, "49.90")))
	assert.True(t, receipt.Lines[0].Subtotal.Equal(dec(t, "49.90")))
	assert.Equal(t, 0, receipt.Lines[0].DiscountPct)

	// Product 1: 19.99 with 10% off -> 17.99 a unit.
	assert.True(t, receipt.Lines[1].UnitPrice.Equal(dec(t, "19.99")))
	assert.True(t, receipt.Lines[1].UnitPriceFinal.Equal(dec(t, "17.99")))
	assert.True(t, receipt.Lines[1].Subtotal.Equal(dec(t, "53.97")))
	assert.True(t, receipt.Lines[2].Subtotal.Equal(dec(t, "35.98")))

	// 49.90 + 53.97 + 35.98
	assert.True(t, receipt.Total.Equal(dec(t, "139.85")), "total = %s", receipt.Total)

	// Both lines for 1/M drew from the same locked record.
	assert.Equal(t, 5, f.stock(t, 1, domain.SizeM))
	assert.Equal(t, 2, f.stock(t, 2, domain.SizeS))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Checkout(context.Background(), nil)
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	// Rejected before any catalog or inventory access.
	assert.Zero(t, f.catalog.getCalls.Load())
	assert.Zero(t, f.inventory.beginCalls.Load())
}

func TestCheckout_InvalidQuantity(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 0},
	})
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.Zero(t, f.inventory.beginCalls.Load())
}

func TestCheckout_ProductNotFound(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 1},
		{ProductID: 999, Size: domain.SizeM, Quantity: 1},
	})
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	// Products resolve before any lock, so no transaction was opened
	// and no stock moved.
	assert.Zero(t, f.inventory.beginCalls.Load())
	assert.Equal(t, 10, f.stock(t, 1, domain.SizeM))
}

func TestCheckout_VariantNotFound(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 1},
		{ProductID: 1, Size: domain.SizeXS, Quantity: 1},
	})
	assert.ErrorIs(t, err, store.ErrVariantNotFound)
	assert.Equal(t, 10, f.stock(t, 1, domain.SizeM))
}

func TestCheckout_AggregatedDemandExceedsStock(t *testing.T) {
	f := setupService(t)
	f.inventory.SetStock(domain.VariantKey{ProductID: 1, Size: domain.SizeM}, 5)

	// Each line alone fits, the aggregate does not.
	_, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 3},
		{ProductID: 1, Size: domain.SizeM, Quantity: 3},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, domain.SizeM, stockErr.Size)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)

	assert.Equal(t, 5, f.stock(t, 1, domain.SizeM))
}

func TestCheckout_FailureRollsBackEveryVariant(t *testing.T) {
	f := setupService(t)

	// 1/M succeeds validation first (lock order), then 2/S fails: the
	// already-locked variant must be left untouched.
	_, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 4},
		{ProductID: 2, Size: domain.SizeS, Quantity: 99},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.ProductID)

	assert.Equal(t, 10, f.stock(t, 1, domain.SizeM))
	assert.Equal(t, 3, f.stock(t, 2, domain.SizeS))
}

func TestCheckout_DiscountOutOfRangeIsClamped(t *testing.T) {
	f := setupService(t)
	f.catalog.products[3] = domain.Product{ID: 3, Name: "Oferta rara", Price: decimal.RequireFromString("10.00"), DiscountPct: 120, CategoryID: 1}
	f.inventory.SetStock(domain.VariantKey{ProductID: 3, Size: domain.SizeM}, 1)

	receipt, err := f.service.Checkout(context.Background(), []domain.CartLine{
		{ProductID: 3, Size: domain.SizeM, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 90, receipt.Lines[0].DiscountPct)
	assert.True(t, receipt.Lines[0].UnitPriceFinal.Equal(dec(t, "1.00")))
}

func TestCheckout_SnapshotPricingIsIdempotent(t *testing.T) {
	f := setupService(t)
	lines := []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 2},
		{ProductID: 2, Size: domain.SizeS, Quantity: 1},
	}

	first, err := f.service.Checkout(context.Background(), lines)
	require.NoError(t, err)

	// Restock and repeat: with unchanged catalog values the price
	// fields must match exactly.
	f.inventory.SetStock(domain.VariantKey{ProductID: 1, Size: domain.SizeM}, 10)
	f.inventory.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeS}, 3)

	second, err := f.service.Checkout(context.Background(), lines)
	require.NoError(t, err)

	require.Len(t, second.Lines, len(first.Lines))
	for i := range first.Lines {
		assert.True(t, first.Lines[i].UnitPrice.Equal(second.Lines[i].UnitPrice))
		assert.True(t, first.Lines[i].UnitPriceFinal.Equal(second.Lines[i].UnitPriceFinal))
		assert.True(t, first.Lines[i].Subtotal.Equal(second.Lines[i].Subtotal))
	}
	assert.True(t, first.Total.Equal(second.Total))
}

func TestCheckout_ConcurrentRaceForLastUnit(t *testing.T) {
	f := setupService(t)
	key := domain.VariantKey{ProductID: 1, Size: domain.SizeM}
	f.inventory.SetStock(key, 1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Checkout(context.Background(), []domain.CartLine{
				{ProductID: 1, Size: domain.SizeM, Quantity: 1},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 0, stockErr.Available)
		assert.Equal(t, 1, stockErr.Requested)
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, f.stock(t, 1, domain.SizeM))
}

func TestCheckout_ConcurrentNoOverselling(t *testing.T) {
	f := setupService(t)
	key := domain.VariantKey{ProductID: 1, Size: domain.SizeM}
	f.inventory.SetStock(key, 100)

	// 10 carts want 20 units each; only 5 can succeed.
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Checkout(context.Background(), []domain.CartLine{
				{ProductID: 1, Size: domain.SizeM, Quantity: 20},
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, 0, f.stock(t, 1, domain.SizeM))
}

func TestCheckout_OverlappingCartsDoNotDeadlock(t *testing.T) {
	f := setupService(t)
	f.inventory.SetStock(domain.VariantKey{ProductID: 1, Size: domain.SizeM}, 1000)
	f.inventory.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeS}, 1000)

	// Carts reference the same two variants in opposite request
	// order. The global lock order makes both acquire 1/M before 2/S,
	// so none of these can deadlock.
	forward := []domain.CartLine{
		{ProductID: 1, Size: domain.SizeM, Quantity: 1},
		{ProductID: 2, Size: domain.SizeS, Quantity: 1},
	}
	backward := []domain.CartLine{
		{ProductID: 2, Size: domain.SizeS, Quantity: 1},
		{ProductID: 1, Size: domain.SizeM, Quantity: 1},
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		lines := forward
		if i%2 == 1 {
			lines = backward
		}
		wg.Add(1)
		go func(lines []domain.CartLine) {
			defer wg.Done()
			_, err := f.service.Checkout(context.Background(), lines)
			assert.NoError(t, err)
		}(lines)
	}
	wg.Wait()

	assert.Equal(t, 950, f.stock(t, 1, domain.SizeM))
	assert.Equal(t, 950, f.stock(t, 2, domain.SizeS))
}
