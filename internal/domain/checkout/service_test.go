package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/domain/cart"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

type stubCarts struct {
	lines map[string][]cart.CartLine
	err   error
}

func (s stubCarts) ListByOwner(_ context.Context, ownerKey string) ([]cart.CartLine, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lines[ownerKey], nil
}

func validFields() ShippingFields {
	return ShippingFields{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address:    "12 Analytical Row",
		City:       "Barrie",
		Province:   "ON",
		PostalCode: "L4M 3X9",
		Phone:      "705-555-0100",
	}
}

func TestBuildDraftOrder(t *testing.T) {
	carts := stubCarts{lines: map[string][]cart.CartLine{
		"user@example.com": {
			{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("0.99")},
		},
	}}
	svc := NewService(carts)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	fields := validFields()
	fields.City = "  Barrie  "
	draft, err := svc.BuildDraftOrder(context.Background(), "user@example.com", "user@example.com", fields, now)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", draft.UserID)
	assert.Equal(t, now.UTC(), draft.OrderDate)
	assert.Equal(t, "Barrie", draft.Shipping.City)
	assert.True(t, decimal.RequireFromString("30.99").Equal(draft.Total), "got %s", draft.Total)
	assert.Equal(t, int64(3099), draft.AmountMinor())
	assert.NotEmpty(t, draft.ChargeKey)
}

func TestBuildDraftOrderRejectsMissingFields(t *testing.T) {
	carts := stubCarts{lines: map[string][]cart.CartLine{
		"u": {{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}}
	svc := NewService(carts)

	fields := validFields()
	fields.PostalCode = "   "
	fields.Phone = ""

	_, err := svc.BuildDraftOrder(context.Background(), "u", "u", fields, time.Now())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "postal_code")
	assert.Contains(t, details, "phone")
}

func TestBuildDraftOrderEmptyCart(t *testing.T) {
	svc := NewService(stubCarts{})
	_, err := svc.BuildDraftOrder(context.Background(), "u", "u", validFields(), time.Now())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestBuildDraftOrderRequiresPrincipal(t *testing.T) {
	svc := NewService(stubCarts{})
	_, err := svc.BuildDraftOrder(context.Background(), "anon", "", validFields(), time.Now())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestAmountMinorRounds(t *testing.T) {
	tests := []struct {
		total string
		want  int64
	}{
		{"30", 3000},
		{"19.999", 2000},
		{"0.005", 1},
		{"12.344", 1234},
	}
	for _, tt := range tests {
		d := Draft{Total: decimal.RequireFromString(tt.total)}
		assert.Equal(t, tt.want, d.AmountMinor(), tt.total)
	}
}

func TestRotateChargeKey(t *testing.T) {
	d := Draft{ChargeKey: "first"}
	d.RotateChargeKey()
	assert.NotEqual(t, "first", d.ChargeKey)
}
