package handlers

import (
	"net/http"
	"order_engine/internal/models"
	"order_engine/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MenuHandler serves stock maintenance and the rider roster.
type MenuHandler struct {
	inventoryService services.InventoryService
	riderService     services.RiderService
	logger           *zap.Logger
}

func NewMenuHandler(inventoryService services.InventoryService, riderService services.RiderService, logger *zap.Logger) *MenuHandler {
	return &MenuHandler{inventoryService: inventoryService, riderService: riderService, logger: logger}
}

func (h *MenuHandler) Restock(c *gin.Context) {
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	item, err := h.inventoryService.Restock(c.Request.Context(), c.Param("tenantId"), itemID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item restocked", "item": item})
}

func (h *MenuHandler) LowStock(c *gin.Context) {
	items, err := h.inventoryService.LowStock(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuHandler) ListRiders(c *gin.Context) {
	riders, err := h.riderService.ListRiders(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, riders)
}
