// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/pkg/auth"
)

// Handlers groups every handler the API mounts
type Handlers struct {
	Catalog        *handlers.CatalogHandler
	Cart           *handlers.CartHandler
	Checkout       *handlers.CheckoutHandler
	Orders         *handlers.OrderHandler
	Reconciliation *handlers.ReconciliationHandler
}

// SetupCatalogRoutes sets up the public catalog routes
func SetupCatalogRoutes(rg *gin.RouterGroup, h *handlers.CatalogHandler) {
	rg.GET("/categories", h.GetCategories)
	rg.GET("/categories/:name/products", h.GetProductsByCategory)
	rg.GET("/products/:name", h.GetProduct)
}

// SetupCartRoutes sets up cart routes. They work for guests and signed-in users.
func SetupCartRoutes(rg *gin.RouterGroup, h *handlers.CartHandler, jwtManager *auth.JWTManager) {
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(jwtManager))
	{
		cart.GET("", h.GetCart)
		cart.POST("/items", h.AddToCart)
		cart.DELETE("/items/:id", h.RemoveFromCart)
	}
}

// SetupCheckoutRoutes sets up checkout and order routes, all authenticated
func SetupCheckoutRoutes(rg *gin.RouterGroup, h *handlers.CheckoutHandler, orders *handlers.OrderHandler, jwtManager *auth.JWTManager, logger logrus.FieldLogger) {
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.AuthMiddleware(jwtManager, logger))
	{
		checkout.GET("", h.GetCheckout)
		checkout.POST("/shipping", h.SubmitShipping)
		checkout.GET("/payment", h.GetPayment)
		checkout.POST("/payment", h.SubmitPayment)
	}

	orderGroup := rg.Group("/orders")
	orderGroup.Use(middleware.AuthMiddleware(jwtManager, logger))
	{
		orderGroup.GET("/:id", orders.GetOrder)
	}
}

// SetupAdminRoutes sets up operator routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *handlers.ReconciliationHandler, jwtManager *auth.JWTManager, logger logrus.FieldLogger) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager, logger), middleware.AdminMiddleware(logger))
	{
		admin.GET("/reconciliation", h.ListPending)
		admin.POST("/reconciliation/:key/resolve", h.Resolve)
	}
}

// SetupRoutes mounts every API route on rg
func SetupRoutes(rg *gin.RouterGroup, h Handlers, jwtManager *auth.JWTManager, logger logrus.FieldLogger) {
	SetupCatalogRoutes(rg, h.Catalog)
	SetupCartRoutes(rg, h.Cart, jwtManager)
	SetupCheckoutRoutes(rg, h.Checkout, h.Orders, jwtManager, logger)
	SetupAdminRoutes(rg, h.Reconciliation, jwtManager, logger)
}
