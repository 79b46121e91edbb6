package cache

import (
	"context"
	"errors"

	"github.com/Facubm01/ocaso/internal/domain"
)

// ProductCache caches catalog listings. Misses are signalled with
// ErrCacheMiss; any other error means the cache itself failed and the
// caller should fall back to the store.
type ProductCache interface {
	GetProducts(ctx context.Context, key string) ([]*domain.Product, error)
	SetProducts(ctx context.Context, key string, products []*domain.Product) error
}

var ErrCacheMiss = errors.New("cache miss")
