// internal/interfaces/http/handlers/catalog.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/interfaces/http/response"
)

// CatalogHandler serves the read-only catalog
type CatalogHandler struct {
	catalog *catalog.Service
	logger  logrus.FieldLogger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service, logger logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalogService,
		logger:  logger,
	}
}

// GetCategories handles GET /categories
func (h *CatalogHandler) GetCategories(c *gin.Context) {
	categories, err := h.catalog.GetCategoriesSorted(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Categories retrieved successfully", categories)
}

// GetProductsByCategory handles GET /categories/:name/products
func (h *CatalogHandler) GetProductsByCategory(c *gin.Context) {
	products, err := h.catalog.GetProductsByCategory(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Products retrieved successfully", products)
}

// GetProduct handles GET /products/:name
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProductByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Success(c, "Product retrieved successfully", product)
}
