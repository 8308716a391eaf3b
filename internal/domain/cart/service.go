// internal/domain/cart/service.go
package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/catalog"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the cart store. All reads and writes are scoped by owner key.
type Service struct {
	db      *gorm.DB
	catalog catalog.Reader
}

// NewService creates a new cart service
func NewService(db *gorm.DB, catalogReader catalog.Reader) *Service {
	return &Service{
		db:      db,
		catalog: catalogReader,
	}
}

// WithTx returns a copy of the service bound to tx
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, catalog: s.catalog}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// AddOrIncrement adds quantity of a product to the owner's cart. The first add
// snapshots the product price; later adds only bump the quantity. The
// increment happens in a single upsert statement so concurrent adds for the
// same line cannot lose updates.
func (s *Service) AddOrIncrement(ctx context.Context, ownerKey string, productID uint, quantity int) (*CartLine, error) {
	if err := requireOwner(ownerKey); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	line := CartLine{
		OwnerKey:  ownerKey,
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_key"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_lines.quantity + ?", quantity),
			"updated_at": now,
		}),
	}).Create(&line).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to add cart line")
	}

	var stored CartLine
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Where("owner_key = ? AND product_id = ?", ownerKey, product.ID).
		First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload cart line: %w", err)
	}

	return &stored, nil
}

// ListByOwner returns the owner's lines with their products, oldest first
func (s *Service) ListByOwner(ctx context.Context, ownerKey string) ([]CartLine, error) {
	if err := requireOwner(ownerKey); err != nil {
		return nil, err
	}

	lines := []CartLine{}
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Where("owner_key = ?", ownerKey).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	return lines, nil
}

// RemoveLine deletes one line. A line that does not exist, or that belongs to
// another owner, is NotFound and nothing changes.
func (s *Service) RemoveLine(ctx context.Context, ownerKey string, lineID uint) error {
	if err := requireOwner(ownerKey); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND owner_key = ?", lineID, ownerKey).
		Delete(&CartLine{})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "failed to remove cart line")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart line %d not found", lineID)
	}
	return nil
}

// ComputeTotal sums quantity * unit price over the owner's lines
func (s *Service) ComputeTotal(ctx context.Context, ownerKey string) (decimal.Decimal, error) {
	lines, err := s.ListByOwner(ctx, ownerKey)
	if err != nil {
		return decimal.Zero, err
	}
	return Total(lines), nil
}

// Summary returns the lines with their counts and total
func (s *Service) Summary(ctx context.Context, ownerKey string) (*Summary, error) {
	lines, err := s.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Lines:     lines,
		LineCount: len(lines),
		Total:     Total(lines),
	}
	for _, line := range lines {
		summary.ItemCount += line.Quantity
	}
	return summary, nil
}

// Clear removes every line of the owner
func (s *Service) Clear(ctx context.Context, ownerKey string) error {
	if err := requireOwner(ownerKey); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Where("owner_key = ?", ownerKey).Delete(&CartLine{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to clear cart")
	}
	return nil
}

// Deduct takes quantities (product id -> units) out of the owner's cart.
// Lines that drop to zero or below are deleted; lines and units not named
// in quantities are left alone.
func (s *Service) Deduct(ctx context.Context, ownerKey string, quantities map[uint]int) error {
	if err := requireOwner(ownerKey); err != nil {
		return err
	}

	for productID, qty := range quantities {
		if qty <= 0 {
			continue
		}
		scope := s.db.WithContext(ctx).
			Where("owner_key = ? AND product_id = ?", ownerKey, productID).
			Session(&gorm.Session{})

		if err := scope.Where("quantity <= ?", qty).Delete(&CartLine{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to remove cart line")
		}
		if err := scope.Model(&CartLine{}).Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to reduce cart line")
		}
	}
	return nil
}

// ReassignOwner moves every line of from to to in one statement, keeping line IDs.
// Callers must fold colliding products first; see MergeOwner.
func (s *Service) ReassignOwner(ctx context.Context, from, to string) (int64, error) {
	if err := requireOwner(from); err != nil {
		return 0, err
	}
	if err := requireOwner(to); err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).
		Model(&CartLine{}).
		Where("owner_key = ?", from).
		Updates(map[string]any{"owner_key": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "failed to reassign cart lines")
	}
	return result.RowsAffected, nil
}

// MergeOwner hands all of from's lines to to. Where to already holds a line for
// the same product the quantity is folded into to's line (keeping to's price
// snapshot) and from's line is deleted; the rest are reassigned in bulk.
// Run it inside a transaction.
func (s *Service) MergeOwner(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}

	var fromLines []CartLine
	if err := s.db.WithContext(ctx).Where("owner_key = ?", from).Find(&fromLines).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to load cart lines for merge")
	}

	for _, line := range fromLines {
		result := s.db.WithContext(ctx).
			Model(&CartLine{}).
			Where("owner_key = ? AND product_id = ?", to, line.ProductID).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity + ?", line.Quantity),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "failed to fold cart line")
		}
		if result.RowsAffected == 0 {
			continue
		}
		if err := s.db.WithContext(ctx).Delete(&CartLine{}, line.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to drop folded cart line")
		}
	}

	_, err := s.ReassignOwner(ctx, from, to)
	return err
}

func requireOwner(ownerKey string) error {
	if strings.TrimSpace(ownerKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner key is required")
	}
	return nil
}
