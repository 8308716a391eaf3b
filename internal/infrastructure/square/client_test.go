package square

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/payment"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"github.com/your-org/storefront/internal/pkg/logger"
)

type fakeCustomers struct {
	req *sq.CreateCustomerRequest
	err error
}

func (f *fakeCustomers) Create(_ context.Context, req *sq.CreateCustomerRequest, _ ...sqoption.RequestOption) (*sq.CreateCustomerResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	id := "cust_1"
	return &sq.CreateCustomerResponse{Customer: &sq.Customer{ID: &id}}, nil
}

type fakeCards struct {
	req *sq.CreateCardRequest
	err error
}

func (f *fakeCards) Create(_ context.Context, req *sq.CreateCardRequest, _ ...sqoption.RequestOption) (*sq.CreateCardResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	id := "ccof_1"
	return &sq.CreateCardResponse{Card: &sq.Card{ID: &id}}, nil
}

type fakePayments struct {
	req    *sq.CreatePaymentRequest
	status string
	err    error
}

func (f *fakePayments) Create(_ context.Context, req *sq.CreatePaymentRequest, _ ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	id := "pay_1"
	status := f.status
	return &sq.CreatePaymentResponse{Payment: &sq.Payment{ID: &id, Status: &status}}, nil
}

func newTestClient() (*Client, *fakeCustomers, *fakeCards, *fakePayments) {
	customers := &fakeCustomers{}
	cards := &fakeCards{}
	payments := &fakePayments{status: "COMPLETED"}
	return &Client{
		customers:  customers,
		cards:      cards,
		payments:   payments,
		locationID: "LOC1",
		logger:     logger.Discard(),
	}, customers, cards, payments
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(config.PaymentConfig{SquareLocationID: "LOC1"}, logger.Discard())
	assert.ErrorIs(t, err, errAccessTokenRequired)

	_, err = NewClient(config.PaymentConfig{SquareAccessToken: "tok"}, logger.Discard())
	assert.ErrorIs(t, err, errLocationRequired)

	_, err = NewClient(config.PaymentConfig{SquareAccessToken: "tok", SquareLocationID: "LOC1", SquareEnvironment: "staging"}, logger.Discard())
	assert.ErrorIs(t, err, errInvalidSquareEnv)

	c, err := NewClient(config.PaymentConfig{SquareAccessToken: "tok", SquareLocationID: "LOC1"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "LOC1", c.locationID)
}

func TestCreateCustomerVaultsCard(t *testing.T) {
	c, customers, cards, _ := newTestClient()

	ref, err := c.CreateCustomer(context.Background(), payment.CustomerRequest{
		Email:          "ada@example.com",
		PaymentToken:   "cnon:card-nonce-ok",
		ReferenceID:    "ada@example.com",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.CustomerRef{CustomerID: "cust_1", SourceID: "ccof_1"}, ref)

	assert.Equal(t, "key-1-customer", *customers.req.IdempotencyKey)
	assert.Equal(t, "ada@example.com", *customers.req.EmailAddress)
	assert.Equal(t, "key-1-card", cards.req.IdempotencyKey)
	assert.Equal(t, "cnon:card-nonce-ok", cards.req.SourceID)
	assert.Equal(t, "cust_1", *cards.req.Card.CustomerID)
}

func TestChargeSendsAmountAndKey(t *testing.T) {
	c, _, _, payments := newTestClient()

	result, err := c.Charge(context.Background(), payment.ChargeRequest{
		Customer:       payment.CustomerRef{CustomerID: "cust_1", SourceID: "ccof_1"},
		AmountMinor:    3000,
		Currency:       "usd",
		ReferenceID:    "key-1",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", result.PaymentID)

	req := payments.req
	assert.Equal(t, "key-1", req.IdempotencyKey)
	assert.Equal(t, "ccof_1", req.SourceID)
	assert.Equal(t, "LOC1", *req.LocationID)
	assert.Equal(t, int64(3000), *req.AmountMoney.Amount)
	assert.Equal(t, sq.Currency("USD"), *req.AmountMoney.Currency)
	assert.Nil(t, req.Note)
}

func TestChargeClassifiesPaymentStatus(t *testing.T) {
	tests := []struct {
		status   string
		wantCode pkgerrors.Code
	}{
		{"APPROVED", ""},
		{"FAILED", pkgerrors.CodePaymentDeclined},
		{"CANCELED", pkgerrors.CodePaymentDeclined},
		{"PENDING", pkgerrors.CodePaymentIndeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c, _, _, payments := newTestClient()
			payments.status = tt.status

			_, err := c.Charge(context.Background(), payment.ChargeRequest{AmountMinor: 100, Currency: "USD", IdempotencyKey: "k"})
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, pkgerrors.CodeOf(err))
		})
	}
}

func TestMapSquareError(t *testing.T) {
	table := []struct {
		name     string
		err      error
		wantCode pkgerrors.Code
	}{
		{
			name:     "card declined",
			err:      sqcore.NewAPIError(http.StatusPaymentRequired, errors.New(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`)),
			wantCode: pkgerrors.CodePaymentDeclined,
		},
		{
			name:     "bad request",
			err:      sqcore.NewAPIError(http.StatusBadRequest, errors.New(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST"}]}`)),
			wantCode: pkgerrors.CodePaymentDeclined,
		},
		{
			name:     "authentication error",
			err:      sqcore.NewAPIError(http.StatusUnauthorized, errors.New(`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`)),
			wantCode: pkgerrors.CodePaymentIndeterminate,
		},
		{
			name:     "idempotency key reused",
			err:      sqcore.NewAPIError(http.StatusBadRequest, errors.New(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`)),
			wantCode: pkgerrors.CodePaymentIndeterminate,
		},
		{
			name:     "server error",
			err:      sqcore.NewAPIError(http.StatusBadGateway, errors.New(`{"errors":[]}`)),
			wantCode: pkgerrors.CodePaymentIndeterminate,
		},
		{
			name:     "request timeout",
			err:      sqcore.NewAPIError(http.StatusRequestTimeout, errors.New("")),
			wantCode: pkgerrors.CodePaymentIndeterminate,
		},
		{
			name:     "network failure",
			err:      context.DeadlineExceeded,
			wantCode: pkgerrors.CodePaymentIndeterminate,
		},
	}
	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapSquareError(tt.err, "create payment")
			require.Error(t, mapped)
			assert.Equal(t, tt.wantCode, pkgerrors.CodeOf(mapped))
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}

func TestCardDeclineMessageNamesReason(t *testing.T) {
	err := mapSquareError(sqcore.NewAPIError(http.StatusPaymentRequired,
		errors.New(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"INSUFFICIENT_FUNDS"}]}`)), "create payment")
	assert.Equal(t, "card was declined: insufficient funds", pkgerrors.As(err).Message())
}
