package handlers

import (
	"order_engine/internal/auth"
	"order_engine/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	API      *APIHandler
	Auth     *AuthHandler
	Orders   *OrderHandler
	Menu     *MenuHandler
	Realtime *RealtimeHandler
}

func NewRouter(h Handlers, tokens *auth.TokenIssuer, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/healthz", h.API.Health)

	api := router.Group("/api")
	api.POST("/login", h.Auth.Login)

	tenant := api.Group("/tenants/:tenantId")
	{
		// Customers
		tenant.POST("/public/orders", h.Orders.CreatePublicOrder)
		tenant.GET("/public/orders/:orderId/status", h.Orders.GetOrderStatus)
		tenant.GET("/ws", h.Realtime.Subscribe)

		staff := tenant.Group("", Authenticate(tokens))
		staff.POST("/orders", RequireRoles(models.RoleManager, models.RoleKitchen), h.Orders.CreateOrder)
		staff.GET("/orders", h.Orders.ListOrders)
		staff.GET("/orders/:orderId", h.Orders.GetOrder)
		staff.PUT("/orders/:orderId", h.Orders.UpdateOrder)
		staff.DELETE("/orders/:orderId", RequireRoles(models.RoleManager), h.Orders.CancelOrder)
		staff.GET("/order-history", RequireRoles(models.RoleManager), h.Orders.ListHistory)
		staff.GET("/analytics", RequireRoles(models.RoleManager), h.Orders.Summary)

		staff.PATCH("/menu-items/:itemId/restock", RequireRoles(models.RoleManager), h.Menu.Restock)
		staff.GET("/menu-items/low-stock", RequireRoles(models.RoleManager), h.Menu.LowStock)
		staff.GET("/riders", RequireRoles(models.RoleManager, models.RoleKitchen), h.Menu.ListRiders)
	}

	return router
}
