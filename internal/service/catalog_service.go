package service

import (
	"context"
	"strings"

	"pdv-service/internal/models"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages products and categories
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{store: store, logger: util.GetLogger()}
}

// ProductRequest creates or replaces a product
type ProductRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    string          `json:"categoryId"`
	Available     *bool           `json:"available,omitempty"`
	StockQuantity *int            `json:"stockQuantity,omitempty"`
	TrackStock    bool            `json:"trackStock"`
}

// CategoryRequest creates or replaces a category
type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Active      *bool  `json:"active,omitempty"`
}

// CreateProduct adds a product. Without a category it lands in the default one.
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	p := &models.Product{Available: true}
	if err := s.applyProduct(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct replaces the editable fields of a product. Prices already
// captured on orders are unaffected.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProduct(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) applyProduct(ctx context.Context, p *models.Product, req *ProductRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.NewValidationError("name", "is required")
	}
	if req.Price.IsNegative() {
		return models.NewValidationError("price", "must not be negative")
	}
	if req.Price.Exponent() < -2 && !req.Price.Equal(req.Price.Round(2)) {
		return models.NewValidationError("price", "must have at most two decimal places")
	}
	if req.TrackStock {
		if req.StockQuantity == nil {
			return models.NewValidationError("stockQuantity", "is required when trackStock is set")
		}
		if *req.StockQuantity < 0 {
			return models.NewValidationError("stockQuantity", "must not be negative")
		}
	}

	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		fallback, err := s.store.EnsureDefaultCategory(ctx)
		if err != nil {
			return err
		}
		categoryID = fallback.ID
	} else if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return err
	}

	p.Name = name
	p.Description = req.Description
	p.Price = req.Price.Round(2)
	p.CategoryID = categoryID
	p.TrackStock = req.TrackStock
	p.StockQuantity = req.StockQuantity
	if req.Available != nil {
		p.Available = *req.Available
	}
	return nil
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts lists products matching filter
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	return s.store.ListProducts(ctx, filter)
}

// DeleteProduct removes a product that never appeared on an order
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// CreateCategory adds a category
func (s *CatalogService) CreateCategory(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	c := &models.Category{Active: true}
	if err := applyCategory(c, req); err != nil {
		return nil, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCategory replaces the editable fields of a category
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, req *CategoryRequest) (*models.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Name == models.DefaultCategoryName && strings.TrimSpace(req.Name) != models.DefaultCategoryName {
		return nil, models.NewValidationError("name", "the %s category cannot be renamed", models.DefaultCategoryName)
	}
	if err := applyCategory(c, req); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func applyCategory(c *models.Category, req *CategoryRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.NewValidationError("name", "is required")
	}
	c.Name = name
	c.Description = req.Description
	c.Color = req.Color
	if req.Active != nil {
		c.Active = *req.Active
	}
	return nil
}

// GetCategory retrieves a category by ID
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// ListCategories lists all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

// DeleteCategory removes a category. strategy must be "reassign" or
// "cascade" when the category still has products.
func (s *CatalogService) DeleteCategory(ctx context.Context, id, strategy string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteCategory")
	defer span.End()

	st := models.CategoryDeleteStrategy(strings.ToLower(strings.TrimSpace(strategy)))
	switch st {
	case "", models.CategoryDeleteReassign, models.CategoryDeleteCascade:
	default:
		return models.NewValidationError("strategy", "unknown strategy %q", strategy)
	}

	if err := s.store.DeleteCategory(ctx, id, st); err != nil {
		return err
	}
	s.logger.Info("Category deleted",
		zap.String("category_id", id),
		zap.String("strategy", string(st)))
	return nil
}
