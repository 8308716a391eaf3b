// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"gorm.io/gorm"
)

// Reader is the read-only view of the catalog used by the cart.
type Reader interface {
	GetProductByID(ctx context.Context, id uint) (*Product, error)
}

// Service answers category and product queries
type Service struct {
	db *gorm.DB
}

// NewService creates a new catalog service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetCategoriesSorted returns every category ordered by name
func (s *Service) GetCategoriesSorted(ctx context.Context) ([]Category, error) {
	var categories []Category

	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	return categories, nil
}

// GetProductsByCategory returns the products of the named category ordered by name.
// An unknown category is NotFound; a known one with no products yields an empty slice.
func (s *Service) GetProductsByCategory(ctx context.Context, categoryName string) ([]Product, error) {
	var category Category
	result := s.db.WithContext(ctx).Where("name = ?", categoryName).First(&category)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "category %q not found", categoryName)
		}
		return nil, fmt.Errorf("failed to find category: %w", result.Error)
	}

	products := []Product{}
	if err := s.db.WithContext(ctx).
		Where("category_id = ?", category.ID).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return products, nil
}

// GetProductByName returns a product with its category
func (s *Service) GetProductByName(ctx context.Context, name string) (*Product, error) {
	return s.findProduct(ctx, "name = ?", name)
}

// GetProductByID returns a product with its category
func (s *Service) GetProductByID(ctx context.Context, id uint) (*Product, error) {
	return s.findProduct(ctx, "id = ?", id)
}

func (s *Service) findProduct(ctx context.Context, query string, arg any) (*Product, error) {
	var product Product
	result := s.db.WithContext(ctx).Preload("Category").Where(query, arg).First(&product)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %v not found", arg)
		}
		return nil, fmt.Errorf("failed to find product: %w", result.Error)
	}
	return &product, nil
}
