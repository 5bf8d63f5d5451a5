package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baresync/comanda/internal/catalog"
)

// CatalogHandler exposes the read-only product catalog to clients.
// Responses are cacheable; the router wraps the route with the redis
// response cache when one is configured.
type CatalogHandler struct {
	Catalog catalog.Provider
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(cat catalog.Provider) *CatalogHandler {
	if cat == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: cat}
}

// Products handles GET /v1/bars/:barID/products.  Unavailable products
// are included with available=false so the menu can grey them out.
func (h *CatalogHandler) Products(c echo.Context) error {
	barID, ok := pathUint(c, "barID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bar id"})
	}
	products, err := h.Catalog.GetProducts(c.Request().Context(), barID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}
