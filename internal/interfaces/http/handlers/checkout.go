// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/checkout"
	"github.com/your-org/storefront/internal/domain/owner"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// PaymentRequest carries the single-use token produced by the payment form
type PaymentRequest struct {
	PaymentToken string `json:"payment_token"`
}

// PaymentView is what the payment page needs to render
type PaymentView struct {
	Amount      decimal.Decimal         `json:"amount"`
	AmountMinor int64                   `json:"amount_minor"`
	Currency    string                  `json:"currency"`
	Shipping    checkout.ShippingFields `json:"shipping"`
	OrderDate   time.Time               `json:"order_date"`
}

// CheckoutHandler drives checkout from cart review to payment
type CheckoutHandler struct {
	resolver *owner.Resolver
	carts    *cart.Service
	checkout *checkout.Service
	pipeline *payment.Pipeline
	currency string
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(resolver *owner.Resolver, carts *cart.Service, checkoutService *checkout.Service, pipeline *payment.Pipeline, currency string, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		resolver: resolver,
		carts:    carts,
		checkout: checkoutService,
		pipeline: pipeline,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// GetCheckout handles GET /checkout. Signing in moves the session cart onto
// the account before the summary is built.
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	principal, _ := middleware.GetPrincipalFromContext(c)
	state := middleware.GetSessionState(c)

	if err := h.resolver.MergeOnAuthentication(c.Request.Context(), state, principal); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	summary, err := h.carts.Summary(c.Request.Context(), state.OwnerKey)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Checkout summary retrieved successfully", summary)
}

// SubmitShipping handles POST /checkout/shipping
func (h *CheckoutHandler) SubmitShipping(c *gin.Context) {
	principal, _ := middleware.GetPrincipalFromContext(c)
	state := middleware.GetSessionState(c)

	var fields checkout.ShippingFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Error(c, h.logger, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request data"))
		return
	}

	if err := h.resolver.MergeOnAuthentication(c.Request.Context(), state, principal); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	draft, err := h.checkout.BuildDraftOrder(c.Request.Context(), state.OwnerKey, principal, fields, h.now())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	state.SetDraft(draft)

	response.SuccessStatus(c, http.StatusCreated, "Shipping details saved", h.paymentView(draft))
}

// GetPayment handles GET /checkout/payment
func (h *CheckoutHandler) GetPayment(c *gin.Context) {
	principal, _ := middleware.GetPrincipalFromContext(c)
	draft := middleware.GetSessionState(c).Draft
	if draft == nil || draft.UserID != principal {
		response.Error(c, h.logger, pkgerrors.New(pkgerrors.CodeNotFound, "there is no order awaiting payment"))
		return
	}
	response.Success(c, "Payment details retrieved successfully", h.paymentView(draft))
}

// SubmitPayment handles POST /checkout/payment
func (h *CheckoutHandler) SubmitPayment(c *gin.Context) {
	principal, _ := middleware.GetPrincipalFromContext(c)
	email, _ := middleware.GetUserEmailFromContext(c)
	state := middleware.GetSessionState(c)

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.logger, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request data"))
		return
	}

	result, err := h.pipeline.Submit(c.Request.Context(), state, payment.Payer{PrincipalID: principal, Email: email}, req.PaymentToken)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	response.SuccessStatus(c, status, "Order placed successfully", result)
}

func (h *CheckoutHandler) paymentView(draft *checkout.Draft) PaymentView {
	return PaymentView{
		Amount:      draft.Total,
		AmountMinor: draft.AmountMinor(),
		Currency:    h.currency,
		Shipping:    draft.Shipping,
		OrderDate:   draft.OrderDate,
	}
}
