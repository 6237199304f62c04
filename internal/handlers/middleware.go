package handlers

import (
	"net/http"
	"order_engine/internal/auth"
	"order_engine/internal/models"
	"order_engine/internal/services"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if tenantID := c.Param("tenantId"); tenantID != "" {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// Authenticate requires a bearer token issued for the tenant in the path.
func Authenticate(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || raw == "" || raw == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required", "reason": services.ReasonInvalidCredentials})
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "reason": services.ReasonInvalidCredentials})
			return
		}
		if tenantID := c.Param("tenantId"); tenantID != "" && tenantID != claims.TenantID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied for this tenant", "reason": services.ReasonActionNotPermitted})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRoles lets through only the listed staff roles. It must run after Authenticate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims != nil {
			for _, role := range roles {
				if claims.Role == role {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied", "reason": services.ReasonActionNotPermitted})
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// staffActor builds the request's actor from its verified claims.
func staffActor(c *gin.Context) (services.Actor, bool) {
	claims := claimsFrom(c)
	if claims == nil {
		return nil, false
	}
	actor, err := services.NewStaffActor(claims.Role, claims.UserID, claims.Username)
	if err != nil {
		return nil, false
	}
	return actor, true
}
