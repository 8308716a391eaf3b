// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/catalog"
)

// CartLine is one product in one owner's cart. There is at most one line per
// (owner_key, product_id); repeated adds increment Quantity.
// Lines are hard-deleted so the unique index never collides with a tombstone.
type CartLine struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OwnerKey  string          `gorm:"not null;size:255;uniqueIndex:idx_cart_lines_owner_product,priority:1" json:"-"`
	ProductID uint            `gorm:"not null;uniqueIndex:idx_cart_lines_owner_product,priority:2" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Product *catalog.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"product,omitempty"`
}

// TableName overrides the table name
func (CartLine) TableName() string {
	return "cart_lines"
}

// Subtotal is Quantity * UnitPrice
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary is the view-cart projection of an owner's lines
type Summary struct {
	Lines     []CartLine      `json:"lines"`
	LineCount int             `json:"line_count"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Total sums Subtotal over lines
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
