// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AttemptStatus is the lifecycle of one charge attempt
type AttemptStatus string

const (
	// AttemptPending is recorded before the gateway is called
	AttemptPending AttemptStatus = "pending"
	// AttemptCharged means the gateway captured the money but no order exists yet
	AttemptCharged AttemptStatus = "charged"
	// AttemptDeclined means the gateway refused the charge
	AttemptDeclined AttemptStatus = "declined"
	// AttemptIndeterminate means the gateway outcome is unknown (timeout, network)
	AttemptIndeterminate AttemptStatus = "indeterminate"
	// AttemptCommitted means the order and its details were written
	AttemptCommitted AttemptStatus = "committed"
)

// Address is the shipping destination typed in at checkout
type Address struct {
	FirstName  string `gorm:"not null;size:100" json:"first_name"`
	LastName   string `gorm:"not null;size:100" json:"last_name"`
	Address    string `gorm:"not null;size:255" json:"address"`
	City       string `gorm:"not null;size:100" json:"city"`
	Province   string `gorm:"not null;size:100" json:"province"`
	PostalCode string `gorm:"not null;size:20" json:"postal_code"`
	Phone      string `gorm:"not null;size:30" json:"phone"`
}

// Order is a committed, paid order. It is immutable once written.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"size:50;index" json:"order_number"`
	UserID          string          `gorm:"not null;size:255;index" json:"user_id"`
	Shipping        Address         `gorm:"embedded" json:"shipping"`
	OrderDate       time.Time       `gorm:"not null" json:"order_date"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	ChargeKey       string          `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ChargeReference string          `gorm:"size:255" json:"charge_reference"`
	CreatedAt       time.Time       `json:"created_at"`

	Details []OrderDetail `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"details"`
}

// OrderDetail is a frozen copy of one cart line at commit time
type OrderDetail struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"size:255" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LineSnapshot is a cart line as it was when the customer was charged
type LineSnapshot struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ChargeAttempt is the durable idempotency record for one draft's payment.
// ChargeKey is the draft's charge key and is also sent to the gateway.
// It carries everything needed to write the order, so a captured charge can
// be committed after the session that paid for it is gone.
type ChargeAttempt struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	ChargeKey           string         `gorm:"uniqueIndex;not null;size:64" json:"charge_key"`
	OwnerKey            string         `gorm:"not null;size:255;index" json:"owner_key"`
	UserID              string         `gorm:"not null;size:255" json:"user_id"`
	AmountMinor         int64          `gorm:"not null" json:"amount_minor"`
	Currency            string         `gorm:"size:3;not null" json:"currency"`
	Status              AttemptStatus  `gorm:"size:20;not null;index" json:"status"`
	PaymentReference    string         `gorm:"size:255" json:"payment_reference"`
	OrderID             *uint          `gorm:"index" json:"order_id,omitempty"`
	Lines               []LineSnapshot `gorm:"serializer:json;type:text" json:"lines"`
	Shipping            Address        `gorm:"serializer:json;type:text" json:"shipping"`
	OrderDate           time.Time      `json:"order_date"`
	NeedsReconciliation bool           `gorm:"not null;default:false;index" json:"needs_reconciliation"`
	LastError           string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName overrides
func (Order) TableName() string         { return "orders" }
func (OrderDetail) TableName() string   { return "order_details" }
func (ChargeAttempt) TableName() string { return "charge_attempts" }

// GenerateOrderNumber formats the human-facing order number
func (o *Order) GenerateOrderNumber() string {
	// Format: ORD-YYYYMMDD-XXXXX
	return fmt.Sprintf("ORD-%s-%05d", o.OrderDate.Format("20060102"), o.ID)
}

// DetailsTotal sums quantity * unit price over the details
func (o *Order) DetailsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range o.Details {
		total = total.Add(d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	return total
}

// SnapshotTotal sums quantity * unit price over the snapshot
func SnapshotTotal(lines []LineSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
