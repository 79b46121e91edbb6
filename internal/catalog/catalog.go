// Package catalog is the read side of the store: product and category
// listings served through an optional cache. Checkout never reads
// through here; it resolves products straight from the store so
// receipts snapshot current values.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Facubm01/ocaso/internal/cache"
	"github.com/Facubm01/ocaso/internal/domain"
	"github.com/Facubm01/ocaso/internal/store"
)

type Service struct {
	store  store.ProductCatalog
	cache  cache.ProductCache // nil disables caching
	logger *zap.Logger
	sfg    singleflight.Group // prevents cache stampede on listings
}

func NewService(catalog store.ProductCatalog, productCache cache.ProductCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  catalog,
		cache:  productCache,
		logger: logger,
	}
}

// ListAvailableProducts returns in-stock products, optionally
// filtered by category. Cache failures degrade to a direct store
// read.
func (s *Service) ListAvailableProducts(ctx context.Context, categoryID *int64) ([]*domain.Product, error) {
	if s.cache == nil {
		return s.store.ListAvailableProducts(ctx, categoryID)
	}

	key := "all"
	if categoryID != nil {
		key = fmt.Sprintf("cat:%d", *categoryID)
	}

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		products, err := s.cache.GetProducts(ctx, key)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("product cache get failed", zap.String("key", key), zap.Error(err))
		}

		products, err = s.store.ListAvailableProducts(ctx, categoryID)
		if err != nil {
			return nil, err
		}

		if err := s.cache.SetProducts(ctx, key, products); err != nil {
			s.logger.Warn("product cache set failed", zap.String("key", key), zap.Error(err))
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

// GetProduct returns one product with its per-size stock. Reads go
// straight to the store; stock numbers are too volatile to cache.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, []domain.Variant, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	variants, err := s.store.ListVariants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p, variants, nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.store.ListCategories(ctx)
}
