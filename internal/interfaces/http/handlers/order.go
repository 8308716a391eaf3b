// internal/interfaces/http/handlers/order.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// OrderHandler serves committed orders
type OrderHandler struct {
	orders *order.Service
	logger logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *order.Service, logger logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// GetOrder handles GET /orders/:id, the receipt page
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, h.logger, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
		return
	}

	principal, _ := middleware.GetPrincipalFromContext(c)
	o, err := h.orders.GetForPrincipal(c.Request.Context(), uint(orderID), principal)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Order retrieved successfully", o)
}

// ResolveRequest is an operator's finding after checking the gateway dashboard
type ResolveRequest struct {
	Captured         bool   `json:"captured"`
	PaymentReference string `json:"payment_reference"`
}

// ResolveResponse is the reconciled attempt and, when money was captured, the order written for it
type ResolveResponse struct {
	Attempt *order.ChargeAttempt `json:"attempt"`
	Order   *payment.Result      `json:"order,omitempty"`
}

// ReconciliationHandler lets operators work through charges with unknown outcome
type ReconciliationHandler struct {
	orders   *order.Service
	pipeline *payment.Pipeline
	logger   logrus.FieldLogger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(orders *order.Service, pipeline *payment.Pipeline, logger logrus.FieldLogger) *ReconciliationHandler {
	return &ReconciliationHandler{orders: orders, pipeline: pipeline, logger: logger}
}

// ListPending handles GET /admin/reconciliation
func (h *ReconciliationHandler) ListPending(c *gin.Context) {
	attempts, err := h.orders.PendingReconciliation(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Charge attempts awaiting reconciliation", attempts)
}

// Resolve handles POST /admin/reconciliation/:key/resolve
func (h *ReconciliationHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.logger, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request data"))
		return
	}

	attempt, err := h.orders.ResolveAttempt(c.Request.Context(), c.Param("key"), req.Captured, req.PaymentReference)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	admin, _ := middleware.GetPrincipalFromContext(c)
	h.logger.WithFields(logrus.Fields{
		"charge_key":  attempt.ChargeKey,
		"status":      attempt.Status,
		"resolved_by": admin,
	}).Info("Charge attempt reconciled")

	resp := ResolveResponse{Attempt: attempt}
	if attempt.Status == order.AttemptCharged {
		// Captured money: write the order now rather than wait for the shopper.
		result, err := h.pipeline.CommitCaptured(c.Request.Context(), attempt.ChargeKey)
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		resp.Order = result

		if resp.Attempt, err = h.orders.FindAttempt(c.Request.Context(), attempt.ChargeKey); err != nil {
			response.Error(c, h.logger, err)
			return
		}
	}

	response.Success(c, "Charge attempt resolved", resp)
}
