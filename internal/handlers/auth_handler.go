package handlers

import (
	"net/http"
	"order_engine/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

func NewAuthHandler(userService services.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, logger: logger}
}

type LoginRequest struct {
	TenantID string `json:"tenantId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.Username == "" {
		badRequest(c, "Tenant, username and password are required")
		return
	}

	token, user, err := h.userService.Login(c.Request.Context(), req.TenantID, req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role, "userId": user.ID})
}
