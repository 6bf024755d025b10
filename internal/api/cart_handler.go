package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webshop-service/internal/service"
)

type CartHandler struct {
	cartService *service.CartService
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

type cartItemRequest struct {
	ProductID int `json:"product_id" query:"product_id"`
	Quantity  int `json:"quantity"`
}

// GetCart returns the user's cart, creating it on first access --> /cart/:userId
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	cart, err := h.cartService.GetOrCreateCart(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddItem --> POST /cart/:userId/add
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	req := cartItemRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	item, err := h.cartService.AddItem(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// UpdateItem --> PUT /cart/:userId/update
func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	req := cartItemRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	item, err := h.cartService.UpdateItem(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// RemoveItem takes product_id from the body or the query --> DELETE /cart/:userId/remove
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	req := cartItemRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	found, err := h.cartService.RemoveItem(c.Request().Context(), userID, req.ProductID)
	if err != nil {
		return respondError(c, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found in cart"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Item removed"})
}

// ClearCart --> DELETE /cart/:userId/clear
func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	if err := h.cartService.ClearCart(c.Request().Context(), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Cart cleared"})
}
