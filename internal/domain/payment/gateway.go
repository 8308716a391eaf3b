// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// CustomerRequest registers the shopper and their payment method with the gateway
type CustomerRequest struct {
	Email          string
	PaymentToken   string
	ReferenceID    string
	IdempotencyKey string
}

// CustomerRef identifies a gateway customer and the payment source on file
type CustomerRef struct {
	CustomerID string
	SourceID   string
}

// ChargeRequest asks the gateway to capture money from a customer
type ChargeRequest struct {
	Customer       CustomerRef
	AmountMinor    int64
	Currency       string
	Description    string
	ReferenceID    string
	IdempotencyKey string
}

// ChargeResult is a captured payment
type ChargeResult struct {
	PaymentID string
	Status    string
}

// Gateway is the narrow surface of the external payment provider.
// Implementations report a refused payment as CodePaymentDeclined; any other
// error from Charge is treated as an unknown outcome.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (CustomerRef, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// StubGateway approves every charge. Tokens starting with "decline" are refused.
// Used for local development only.
type StubGateway struct{}

// CreateCustomer implements Gateway
func (StubGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (CustomerRef, error) {
	if err := ctx.Err(); err != nil {
		return CustomerRef{}, err
	}
	if strings.TrimSpace(req.PaymentToken) == "" {
		return CustomerRef{}, pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment token is required")
	}
	return CustomerRef{
		CustomerID: "stub-cust-" + uuid.NewString(),
		SourceID:   req.PaymentToken,
	}, nil
}

// Charge implements Gateway
func (StubGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(req.Customer.SourceID, "decline") {
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined")
	}
	return &ChargeResult{
		PaymentID: fmt.Sprintf("stub-pay-%s", req.IdempotencyKey),
		Status:    "COMPLETED",
	}, nil
}
