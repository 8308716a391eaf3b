// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/owner"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// CartHandler handles cart endpoints for anonymous and signed-in shoppers
type CartHandler struct {
	carts    *cart.Service
	resolver *owner.Resolver
	logger   logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *cart.Service, resolver *owner.Resolver, logger logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		resolver: resolver,
		logger:   logger,
	}
}

func (h *CartHandler) ownerKey(c *gin.Context) string {
	principal, _ := middleware.GetPrincipalFromContext(c)
	return h.resolver.Resolve(middleware.GetSessionState(c), principal)
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	summary, err := h.carts.Summary(c.Request.Context(), h.ownerKey(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Cart retrieved successfully", summary)
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.logger, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request data"))
		return
	}

	line, err := h.carts.AddOrIncrement(c.Request.Context(), h.ownerKey(c), req.ProductID, req.Quantity)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.SuccessStatus(c, http.StatusCreated, "Item added to cart successfully", line)
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	lineID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, h.logger, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line id"))
		return
	}

	if err := h.carts.RemoveLine(c.Request.Context(), h.ownerKey(c), uint(lineID)); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Item removed from cart successfully", nil)
}
