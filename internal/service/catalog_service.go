package service

import (
	"context"

	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/render"
)

// ProductRepository lists catalog products.
type ProductRepository interface {
	ListActiveProducts(ctx context.Context, categorySlug string, limit int) ([]*data.Product, error)
}

// CatalogService supplies product grids with real catalog data.
type CatalogService struct {
	products ProductRepository
	log      logger.Logger
}

var _ render.Catalog = (*CatalogService)(nil)

// NewCatalogService creates a CatalogService.
func NewCatalogService(products ProductRepository, log logger.Logger) *CatalogService {
	return &CatalogService{products: products, log: log}
}

// ListProducts returns active products of the queried category, newest first.
func (s *CatalogService) ListProducts(ctx context.Context, q render.ProductQuery) ([]render.Product, error) {
	records, err := s.products.ListActiveProducts(ctx, q.Category, q.Limit)
	if err != nil {
		s.log.Error(err, "list products failed")
		return nil, ErrUnavailable
	}
	out := make([]render.Product, 0, len(records))
	for _, p := range records {
		out = append(out, render.Product{
			ID:          p.ID,
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			ImageURL:    p.ImageURL,
		})
	}
	return out, nil
}
