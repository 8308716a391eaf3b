// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/cart"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"github.com/your-org/storefront/internal/pkg/validation"
)

// ShippingFields is what the shopper types in on the checkout form
type ShippingFields struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	Province   string `json:"province" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Phone      string `json:"phone" validate:"required,max=30"`
}

func (f ShippingFields) trimmed() ShippingFields {
	return ShippingFields{
		FirstName:  strings.TrimSpace(f.FirstName),
		LastName:   strings.TrimSpace(f.LastName),
		Address:    strings.TrimSpace(f.Address),
		City:       strings.TrimSpace(f.City),
		Province:   strings.TrimSpace(f.Province),
		PostalCode: strings.TrimSpace(f.PostalCode),
		Phone:      strings.TrimSpace(f.Phone),
	}
}

// Draft is an order that exists only in session state until it is paid for.
// ChargeKey identifies the single charge this draft may produce.
type Draft struct {
	Shipping  ShippingFields  `json:"shipping"`
	OrderDate time.Time       `json:"order_date"`
	UserID    string          `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	ChargeKey string          `json:"charge_key"`
}

// AmountMinor is the total in minor currency units, rounded half away from zero
func (d *Draft) AmountMinor() int64 {
	return d.Total.Shift(2).Round(0).IntPart()
}

// RotateChargeKey gives the draft a fresh key so a retry after a decline is a new charge
func (d *Draft) RotateChargeKey() {
	d.ChargeKey = NewChargeKey()
}

// NewChargeKey mints a charge idempotency key
func NewChargeKey() string {
	return uuid.NewString()
}

// CartReader is the part of the cart store the assembler needs
type CartReader interface {
	ListByOwner(ctx context.Context, ownerKey string) ([]cart.CartLine, error)
}

// Service builds draft orders
type Service struct {
	carts CartReader
}

// NewService creates a new checkout service
func NewService(carts CartReader) *Service {
	return &Service{carts: carts}
}

// BuildDraftOrder stamps the order date, owner and cart total onto the
// shipping fields. Nothing is persisted.
func (s *Service) BuildDraftOrder(ctx context.Context, ownerKey, principalID string, fields ShippingFields, now time.Time) (*Draft, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires a signed-in user")
	}

	fields = fields.trimmed()
	if err := validation.Struct(fields); err != nil {
		return nil, err
	}

	lines, err := s.carts.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	return &Draft{
		Shipping:  fields,
		OrderDate: now.UTC(),
		UserID:    principalID,
		Total:     cart.Total(lines),
		ChargeKey: NewChargeKey(),
	}, nil
}
