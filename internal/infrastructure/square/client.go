// internal/infrastructure/square/client.go
package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/payment"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

// Square reports refused cards under this category.
const categoryPaymentMethod = sq.ErrorCategory("PAYMENT_METHOD_ERROR")

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

type customersAPI interface {
	Create(ctx context.Context, req *sq.CreateCustomerRequest, opts ...sqoption.RequestOption) (*sq.CreateCustomerResponse, error)
}

type cardsAPI interface {
	Create(ctx context.Context, req *sq.CreateCardRequest, opts ...sqoption.RequestOption) (*sq.CreateCardResponse, error)
}

type paymentsAPI interface {
	Create(ctx context.Context, req *sq.CreatePaymentRequest, opts ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error)
}

// Client is the Square implementation of payment.Gateway
type Client struct {
	customers  customersAPI
	cards      cardsAPI
	payments   paymentsAPI
	locationID string
	logger     logrus.FieldLogger
}

var _ payment.Gateway = (*Client)(nil)

// NewClient builds a Square client from the payment configuration
func NewClient(cfg config.PaymentConfig, logger logrus.FieldLogger) (*Client, error) {
	env, err := normalizeEnv(cfg.SquareEnvironment)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.SquareAccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	location := strings.TrimSpace(cfg.SquareLocationID)
	if location == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(token),
	)

	logger.WithField("environment", env).Info("Square client initialized")
	return &Client{
		customers:  sdk.Customers,
		cards:      sdk.Cards,
		payments:   sdk.Payments,
		locationID: location,
		logger:     logger.WithField("component", "square"),
	}, nil
}

// CreateCustomer registers the shopper and vaults the card nonce on the customer
func (c *Client) CreateCustomer(ctx context.Context, req payment.CustomerRequest) (payment.CustomerRef, error) {
	custResp, err := c.customers.Create(ctx, &sq.CreateCustomerRequest{
		IdempotencyKey: ptrString(req.IdempotencyKey + "-customer"),
		EmailAddress:   ptrString(strings.TrimSpace(req.Email)),
		ReferenceID:    ptrString(req.ReferenceID),
	})
	if err != nil {
		c.logger.WithError(err).Warn("Square create customer failed")
		return payment.CustomerRef{}, mapSquareError(err, "create customer")
	}
	customerID := stringValue(custResp.GetCustomer().GetID())

	cardResp, err := c.cards.Create(ctx, &sq.CreateCardRequest{
		IdempotencyKey: req.IdempotencyKey + "-card",
		SourceID:       req.PaymentToken,
		Card:           &sq.Card{CustomerID: ptrString(customerID)},
	})
	if err != nil {
		c.logger.WithError(err).WithField("customer_id", customerID).Warn("Square create card failed")
		return payment.CustomerRef{}, mapSquareError(err, "create card")
	}

	return payment.CustomerRef{
		CustomerID: customerID,
		SourceID:   stringValue(cardResp.GetCard().GetID()),
	}, nil
}

// Charge creates a payment against the customer's vaulted card
func (c *Client) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	currency := sq.Currency(strings.ToUpper(req.Currency))
	amount := req.AmountMinor

	log := c.logger.WithFields(logrus.Fields{
		"customer_id":  req.Customer.CustomerID,
		"amount_minor": amount,
		"reference_id": req.ReferenceID,
	})

	resp, err := c.payments.Create(ctx, &sq.CreatePaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		LocationID:     ptrString(c.locationID),
		CustomerID:     ptrString(req.Customer.CustomerID),
		SourceID:       req.Customer.SourceID,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
		Note:           ptrString(req.Description),
		ReferenceID:    ptrString(req.ReferenceID),
	})
	if err != nil {
		log.WithError(err).Warn("Square create payment failed")
		return nil, mapSquareError(err, "create payment")
	}

	p := resp.GetPayment()
	result := &payment.ChargeResult{
		PaymentID: stringValue(p.GetID()),
		Status:    stringValue(p.GetStatus()),
	}
	log.WithFields(logrus.Fields{"payment_id": result.PaymentID, "status": result.Status}).Info("Square payment created")

	switch result.Status {
	case "COMPLETED", "APPROVED":
		return result, nil
	case "FAILED", "CANCELED":
		return nil, pkgerrors.Newf(pkgerrors.CodePaymentDeclined, "payment %s", strings.ToLower(result.Status))
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodePaymentIndeterminate, "payment %s is %q", result.PaymentID, result.Status)
	}
}

// mapSquareError classifies a Square failure. A 4xx answer means Square
// refused the request and nothing was captured; anything else leaves the
// outcome unknown.
func mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodePaymentIndeterminate, err, fmt.Sprintf("square %s failed", op))
	}

	code := codeForStatus(apiErr.StatusCode)
	message := fmt.Sprintf("square %s failed", op)
	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused || sqErr.Category == sq.ErrorCategoryAuthenticationError {
			// Our own misconfiguration; the charge may or may not exist.
			code = pkgerrors.CodePaymentIndeterminate
			break
		}
		if sqErr.Category == categoryPaymentMethod {
			code = pkgerrors.CodePaymentDeclined
			message = "card was declined: " + strings.ToLower(strings.ReplaceAll(string(sqErr.Code), "_", " "))
			break
		}
	}
	return pkgerrors.Wrap(code, err, message)
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return pkgerrors.CodePaymentIndeterminate
	case status >= 400 && status < 500:
		return pkgerrors.CodePaymentDeclined
	default:
		return pkgerrors.CodePaymentIndeterminate
	}
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
