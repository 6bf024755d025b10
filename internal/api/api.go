package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"webshop-service/internal/repository"
	"webshop-service/internal/service"
)

type JwtCustomClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// AdminGuard verifies an HS256 bearer token carrying is_admin. With an empty
// secret every request passes.
func AdminGuard(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			claims, ok := token.Claims.(*JwtCustomClaims)
			if !ok || !claims.IsAdmin {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Admin access required"})
			}
			return next(c)
		})
	}
}

func paramID(c echo.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}

func invalidParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid " + name})
}

// respondError renders err with the status matching its kind.
func respondError(c echo.Context, err error) error {
	var insufficient *service.InsufficientStockError
	if errors.As(err, &insufficient) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":      err.Error(),
			"product_id": insufficient.ProductID,
			"available":  insufficient.Available,
			"requested":  insufficient.Requested,
		})
	}

	var notFound *service.ProductNotFoundError
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidProduct):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStockConflict),
		errors.Is(err, service.ErrProductInUse),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDuplicateRequest):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// Register mounts every route on e. Routes that change catalog approval or
// manage orders across users are wrapped in admin.
func Register(e *echo.Echo, products *ProductHandler, carts *CartHandler, orders *OrderHandler, admin echo.MiddlewareFunc) {
	e.GET("/products", products.GetProducts)
	e.POST("/products", products.CreateProduct)
	e.GET("/products/:id", products.GetProduct)
	e.PUT("/products/:id", products.UpdateProduct)
	e.PUT("/products/:id/status", products.UpdateProductStatus, admin)
	e.DELETE("/products/:id", products.DeleteProduct)

	e.GET("/cart/:userId", carts.GetCart)
	e.POST("/cart/:userId/add", carts.AddItem)
	e.PUT("/cart/:userId/update", carts.UpdateItem)
	e.DELETE("/cart/:userId/remove", carts.RemoveItem)
	e.DELETE("/cart/:userId/clear", carts.ClearCart)

	e.GET("/orders", orders.ListOrders, admin)
	e.GET("/orders/stats", orders.GetStats, admin)
	e.GET("/orders/user/:email", orders.ListOrdersByEmail)
	e.GET("/orders/admin/:adminId", orders.ListOrdersByAdmin, admin)
	e.GET("/orders/:id", orders.GetOrder)
	e.POST("/orders/:userId", orders.CreateOrder)
	e.PUT("/orders/:id/status", orders.UpdateOrderStatus, admin)
	e.DELETE("/orders/:id", orders.DeleteOrder, admin)
	e.POST("/orders/:id/reorder/:userId", orders.Reorder)
}
