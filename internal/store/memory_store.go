package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Facubm01/ocaso/internal/domain"
)

// DefaultLockWait bounds how long a transaction blocks on a variant
// lock before failing with ErrLockTimeout.
const DefaultLockWait = 3 * time.Second

// MemoryStore implements ProductCatalog and InventoryStore with
// in-memory storage. Each variant carries its own exclusive lock, so
// concurrent checkouts contend per variant exactly like they would on
// row locks in a database.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[int64]*domain.Product
	categories map[int64]*domain.Category
	variants   map[domain.VariantKey]*memVariant

	lockWait time.Duration
}

// memVariant is one stock row. The buffered channel is the row's
// exclusive lock: a transaction owns the row while its token sits in
// the channel. stock itself is guarded by MemoryStore.mu.
type memVariant struct {
	lock  chan struct{}
	stock int
}

// NewMemoryStore creates an empty in-memory store. lockWait <= 0
// falls back to DefaultLockWait.
func NewMemoryStore(lockWait time.Duration) *MemoryStore {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &MemoryStore{
		products:   make(map[int64]*domain.Product),
		categories: make(map[int64]*domain.Category),
		variants:   make(map[domain.VariantKey]*memVariant),
		lockWait:   lockWait,
	}
}

// SetCategory inserts or replaces a category.
func (s *MemoryStore) SetCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = &c
}

// SetProduct inserts or replaces a product.
func (s *MemoryStore) SetProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

// SetStock sets the stock level for a variant, creating the row if it
// does not exist. Used for seeding and restocking; checkout never
// calls this.
func (s *MemoryStore) SetStock(key domain.VariantKey, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.variants[key]
	if !ok {
		rec = &memVariant{lock: make(chan struct{}, 1)}
		s.variants[key] = rec
	}
	rec.stock = stock
}

// Stock returns the persisted stock of a variant.
func (s *MemoryStore) Stock(key domain.VariantKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.variants[key]
	if !ok {
		return 0, ErrVariantNotFound
	}
	return rec.stock, nil
}

// GetProduct implements ProductCatalog.
func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// ListAvailableProducts implements ProductCatalog. A product is
// available when at least one of its variants has stock.
func (s *MemoryStore) ListAvailableProducts(_ context.Context, categoryID *int64) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if categoryID != nil {
		if _, ok := s.categories[*categoryID]; !ok {
			return nil, ErrCategoryNotFound
		}
	}

	var out []*domain.Product
	for _, p := range s.products {
		if categoryID != nil && p.CategoryID != *categoryID {
			continue
		}
		if !s.hasStockLocked(p.ID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// hasStockLocked reports whether any variant of the product has
// stock. Caller must hold mu.
func (s *MemoryStore) hasStockLocked(productID int64) bool {
	for key, rec := range s.variants {
		if key.ProductID == productID && rec.stock > 0 {
			return true
		}
	}
	return false
}

// ListVariants implements ProductCatalog.
func (s *MemoryStore) ListVariants(_ context.Context, productID int64) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.products[productID]; !ok {
		return nil, ErrProductNotFound
	}

	var out []domain.Variant
	for key, rec := range s.variants {
		if key.ProductID != productID {
			continue
		}
		out = append(out, domain.Variant{ProductID: key.ProductID, Size: key.Size, Stock: rec.stock})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size.Order() < out[j].Size.Order() })
	return out, nil
}

// ListCategories implements ProductCatalog.
func (s *MemoryStore) ListCategories(_ context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Begin implements InventoryStore.
func (s *MemoryStore) Begin(_ context.Context) (InventoryTx, error) {
	return &memoryTx{
		store:  s,
		locked: make(map[domain.VariantKey]*memVariant),
		staged: make(map[domain.VariantKey]int),
	}, nil
}

// memoryTx holds exclusive variant locks until Commit or Rollback.
// Like a database transaction handle, it must not be shared between
// goroutines.
type memoryTx struct {
	store  *MemoryStore
	done   bool
	order  []domain.VariantKey // acquisition order, kept for release
	locked map[domain.VariantKey]*memVariant
	staged map[domain.VariantKey]int
}

// LockVariant implements InventoryTx.
func (tx *memoryTx) LockVariant(ctx context.Context, key domain.VariantKey) (*domain.Variant, error) {
	if tx.done {
		return nil, ErrTxClosed
	}

	if _, ok := tx.locked[key]; ok {
		return tx.viewLocked(key), nil
	}

	tx.store.mu.RLock()
	rec, ok := tx.store.variants[key]
	tx.store.mu.RUnlock()
	if !ok {
		return nil, ErrVariantNotFound
	}

	timer := time.NewTimer(tx.store.lockWait)
	defer timer.Stop()
	select {
	case rec.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockTimeout
	}

	tx.locked[key] = rec
	tx.order = append(tx.order, key)
	return tx.viewLocked(key), nil
}

// viewLocked returns the transaction's view of a held variant: the
// staged value if the tx already wrote it, the persisted one
// otherwise.
func (tx *memoryTx) viewLocked(key domain.VariantKey) *domain.Variant {
	if stock, ok := tx.staged[key]; ok {
		return &domain.Variant{ProductID: key.ProductID, Size: key.Size, Stock: stock}
	}
	tx.store.mu.RLock()
	stock := tx.locked[key].stock
	tx.store.mu.RUnlock()
	return &domain.Variant{ProductID: key.ProductID, Size: key.Size, Stock: stock}
}

// SaveVariant implements InventoryTx.
func (tx *memoryTx) SaveVariant(_ context.Context, v *domain.Variant) error {
	if tx.done {
		return ErrTxClosed
	}
	key := v.Key()
	if _, ok := tx.locked[key]; !ok {
		return fmt.Errorf("variant %s is not locked by this transaction", key)
	}
	if v.Stock < 0 {
		return fmt.Errorf("variant %s: stock must not be negative, got %d", key, v.Stock)
	}
	tx.staged[key] = v.Stock
	return nil
}

// Commit implements InventoryTx.
func (tx *memoryTx) Commit(_ context.Context) error {
	if tx.done {
		return ErrTxClosed
	}
	tx.store.mu.Lock()
	for key, stock := range tx.staged {
		tx.locked[key].stock = stock
	}
	tx.store.mu.Unlock()
	tx.release()
	return nil
}

// Rollback implements InventoryTx.
func (tx *memoryTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.release()
	return nil
}

// release frees every held lock in reverse acquisition order and
// closes the transaction.
func (tx *memoryTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		<-tx.locked[tx.order[i]].lock
	}
	tx.done = true
}
