// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products for browsing
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

// TableName overrides the table name
func (Category) TableName() string {
	return "categories"
}

// Product is immutable from the cart's point of view; its price is copied
// into cart lines and order details at the time of the action.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	ImageURL    string          `gorm:"size:500" json:"image_url"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category,omitempty"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}
