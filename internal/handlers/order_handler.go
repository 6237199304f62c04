package handlers

import (
	"net/http"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"order_engine/internal/services"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService services.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, logger: logger}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), c.Param("tenantId"), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order created", "order_id": order.ID, "order": order})
}

// CreatePublicOrder is the unauthenticated customer checkout.
func (h *OrderHandler) CreatePublicOrder(c *gin.Context) {
	var req struct {
		Items            []services.ItemInput `json:"items"`
		CustomerName     string               `json:"customer_name"`
		CustomerPhone    string               `json:"customer_phone"`
		IsDelivery       bool                 `json:"is_delivery"`
		CustomerLocation string               `json:"customer_location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), c.Param("tenantId"), services.Customer{}, services.CreateOrderInput{
		Items:            req.Items,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		IsDelivery:       req.IsDelivery,
		CustomerLocation: req.CustomerLocation,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed", "order_id": order.ID, "order": order})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := repository.OrderFilter{
		Status:    models.OrderStatus(c.Query("status")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.Param("tenantId"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("tenantId"), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	var req services.UpdateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("tenantId"), orderID, actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order updated", "order": order})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	if _, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("tenantId"), orderID, actor); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order canceled", "order_id": orderID})
}

// GetOrderStatus lets a customer follow their order with the phone number it was placed with.
func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderStatus(c.Request.Context(), c.Param("tenantId"), orderID, c.Query("customerPhone"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListHistory(c *gin.Context) {
	var orderID uint
	if raw := c.Query("orderId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid orderId")
			return
		}
		orderID = uint(id)
	}
	entries, err := h.orderService.ListHistory(c.Request.Context(), c.Param("tenantId"), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *OrderHandler) Summary(c *gin.Context) {
	summary, err := h.orderService.Summary(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
