package handlers

import (
	"net/http"
	"net/url"
	"order_engine/internal/auth"
	"order_engine/internal/realtime"
	"order_engine/internal/services"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RealtimeHandler upgrades live-update subscriptions. Staff subscribe to their whole tenant with
// a bearer token; customers subscribe to one order with the phone number it was placed with.
type RealtimeHandler struct {
	registry     *realtime.Registry
	tokens       *auth.TokenIssuer
	orderService services.OrderService
	upgrader     websocket.Upgrader
	sendBuffer   int
	logger       *zap.Logger
}

func NewRealtimeHandler(
	registry *realtime.Registry,
	tokens *auth.TokenIssuer,
	orderService services.OrderService,
	allowedOrigins []string,
	sendBuffer int,
	logger *zap.Logger,
) *RealtimeHandler {
	return &RealtimeHandler{
		registry:     registry,
		tokens:       tokens,
		orderService: orderService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// originChecker accepts any origin when none are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimSuffix(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	tenantID := c.Param("tenantId")

	if token := c.Query("token"); token != "" {
		claims, err := h.tokens.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "reason": services.ReasonInvalidCredentials})
			return
		}
		if claims.TenantID != tenantID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied for this tenant", "reason": services.ReasonActionNotPermitted})
			return
		}
		conn, ok := h.upgrade(c)
		if !ok {
			return
		}
		h.registry.AddStaff(tenantID, conn)
		h.logger.Debug("staff subscribed",
			zap.String("tenant_id", tenantID),
			zap.Uint("user_id", claims.UserID))
		conn.Serve(func() { h.registry.RemoveStaff(tenantID, conn) })
		return
	}

	rawID := c.Query("orderId")
	phone := c.Query("customerPhone")
	if rawID == "" || phone == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "A token or an order id with phone number is required", "reason": services.ReasonInvalidCredentials})
		return
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid orderId")
		return
	}
	orderID := uint(id)
	if _, err := h.orderService.GetOrderStatus(c.Request.Context(), tenantID, orderID, phone); err != nil {
		respondError(c, h.logger, err)
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	h.registry.AddCustomer(tenantID, orderID, conn)
	conn.Serve(func() { h.registry.RemoveCustomer(tenantID, orderID, conn) })
}

func (h *RealtimeHandler) upgrade(c *gin.Context) (*realtime.Conn, bool) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil, false
	}
	return realtime.NewConn(ws, h.sendBuffer, h.logger), true
}
