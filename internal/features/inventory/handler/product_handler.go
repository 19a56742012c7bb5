package handler

import (
	"errors"
	"net/http"

	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/inventory/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	catalog ports.ProductCatalog
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalog ports.ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// UpsertProduct handles PUT /products.
// @Summary Create or replace a product
// @Description The quantity is only applied when the product is new; use the restock endpoint to add units.
// @Tags Products
// @Accept json
// @Produce json
// @Param product body domain.Product true "Product"
// @Success 200 {object} domain.Product
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /products [put]
func (h *ProductHandler) UpsertProduct(c *fiber.Ctx) error {
	var req domain.Product
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body"})
	}

	p, err := h.catalog.UpsertProduct(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
		}
		logger.Get().Error("Failed to save product", zap.String("product_id", req.ID), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
	}

	return c.Status(http.StatusOK).JSON(p)
}

// RestockRequest is the body of a restock call.
type RestockRequest struct {
	Units int `json:"units"`
}

// Restock handles POST /products/:id/restock.
// @Summary Add units to a product's stock
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param body body RestockRequest true "Units to add"
// @Success 200 {object} domain.Product
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /products/{id}/restock [post]
func (h *ProductHandler) Restock(c *fiber.Ctx) error {
	id := c.Params("id")

	var req RestockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body"})
	}

	p, err := h.catalog.Restock(c.UserContext(), id, req.Units)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Units must be positive"})
		case errors.Is(err, domain.ErrProductNotFound):
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: "Product not found"})
		}
		logger.Get().Error("Failed to restock product", zap.String("product_id", id), zap.Int("units", req.Units), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
	}
	return c.Status(http.StatusOK).JSON(p)
}

// GetProduct handles GET /products/:id.
// @Summary Get a product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /products/{id} [get]
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	p, err := h.catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: "Product not found"})
		}
		logger.Get().Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
	}
	return c.Status(http.StatusOK).JSON(p)
}

// ListProducts handles GET /products.
// @Summary List products
// @Tags Products
// @Produce json
// @Success 200 {array} domain.Product
// @Security BearerAuth
// @Router /products [get]
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.catalog.ListProducts(c.UserContext())
	if err != nil {
		logger.Get().Error("Failed to list products", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
	}
	return c.Status(http.StatusOK).JSON(products)
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	Message string `json:"message"`
}
