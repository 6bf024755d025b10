package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webshop-service/internal/entity"
	"webshop-service/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// statusFilter reads the optional ?status= query parameter.
func statusFilter(c echo.Context) *entity.OrderStatus {
	raw := c.QueryParam("status")
	if raw == "" {
		return nil
	}
	status := entity.OrderStatus(raw)
	return &status
}

func (h *OrderHandler) list(c echo.Context, filter entity.OrderFilter) error {
	filter.Status = statusFilter(c)
	orders, err := h.orderService.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// ListOrders --> /orders?status=
func (h *OrderHandler) ListOrders(c echo.Context) error {
	return h.list(c, entity.OrderFilter{})
}

// ListOrdersByEmail --> /orders/user/:email?status=
func (h *OrderHandler) ListOrdersByEmail(c echo.Context) error {
	return h.list(c, entity.OrderFilter{Email: c.Param("email")})
}

// ListOrdersByAdmin lists orders holding at least one of the seller's products --> /orders/admin/:adminId?status=
func (h *OrderHandler) ListOrdersByAdmin(c echo.Context) error {
	adminID, err := paramID(c, "adminId")
	if err != nil {
		return invalidParam(c, "admin ID")
	}
	return h.list(c, entity.OrderFilter{AdminID: &adminID})
}

// GetOrder --> /orders/:id
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return invalidParam(c, "ID")
	}
	order, err := h.orderService.GetOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// CreateOrder checks out the user's cart --> POST /orders/:userId
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}
	info := entity.CustomerInfo{}
	if err := c.Bind(&info); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	idempotentKey := c.Request().Header.Get("Idempotent-Key")

	createdOrder, err := h.orderService.CreateOrderFromCart(ctx, userID, info, idempotentKey)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, createdOrder)
}

// UpdateOrderStatus --> PUT /orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return invalidParam(c, "ID")
	}
	body := struct {
		Status entity.OrderStatus `json:"status"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	updatedOrder, err := h.orderService.UpdateOrderStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updatedOrder)
}

// DeleteOrder --> DELETE /orders/:id
func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return invalidParam(c, "ID")
	}
	deleted, err := h.orderService.DeleteOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Order not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Order deleted"})
}

// Reorder copies an order's items into the user's cart --> POST /orders/:id/reorder/:userId
func (h *OrderHandler) Reorder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return invalidParam(c, "ID")
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return invalidParam(c, "user ID")
	}

	result, err := h.orderService.Reorder(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetStats --> /orders/stats
func (h *OrderHandler) GetStats(c echo.Context) error {
	stats, err := h.orderService.GetStats(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
