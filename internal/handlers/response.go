package handlers

import (
	"net/http"
	"order_engine/internal/services"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "reason"}. Internal failures are logged and reported
// without detail.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	svcErr := services.AsError(err)
	status := statusFor(svcErr.Kind)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error", "reason": svcErr.Reason})
		return
	}
	c.JSON(status, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "reason": services.ReasonInvalidInput})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
