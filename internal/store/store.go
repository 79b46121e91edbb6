// Package store owns persisted catalog and inventory state. Checkout
// only ever mutates variant stock, and only through an exclusive,
// transaction-scoped lock obtained from an InventoryTx.
package store

import (
	"context"
	"errors"

	"github.com/Facubm01/ocaso/internal/domain"
)

// Common errors returned by store implementations.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrLockTimeout      = errors.New("timed out waiting for variant lock")
	ErrTxClosed         = errors.New("transaction already finished")
)

// ProductCatalog is the read-only product side consumed by checkout
// and the catalog endpoints.
type ProductCatalog interface {
	// GetProduct returns one product by id.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListAvailableProducts returns products that have at least one
	// variant in stock, optionally filtered by category.
	ListAvailableProducts(ctx context.Context, categoryID *int64) ([]*domain.Product, error)

	// ListVariants returns a product's per-size stock rows in size
	// display order.
	ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error)

	// ListCategories returns all categories.
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

// InventoryStore opens inventory transactions.
type InventoryStore interface {
	Begin(ctx context.Context) (InventoryTx, error)
}

// InventoryTx is one atomic unit of stock work. Locks acquired through
// LockVariant are held until Commit or Rollback; staged writes become
// visible only on Commit.
type InventoryTx interface {
	// LockVariant acquires the exclusive lock on one variant and
	// returns its current stock. It blocks while another transaction
	// holds the lock, bounded by the store's lock wait timeout
	// (ErrLockTimeout) and by ctx cancellation.
	LockVariant(ctx context.Context, key domain.VariantKey) (*domain.Variant, error)

	// SaveVariant stages the new stock value of a locked variant.
	SaveVariant(ctx context.Context, v *domain.Variant) error

	// Commit persists every staged write atomically and releases all
	// locks.
	Commit(ctx context.Context) error

	// Rollback discards staged writes and releases all locks. Calling
	// it after Commit (or twice) is a no-op.
	Rollback(ctx context.Context) error
}
