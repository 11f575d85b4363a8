package ws

import (
	"net/http"

	"zapline/backend/pkg/jwt"
	"zapline/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	hub        *Hub
	relay      *Relay
	jwt        *jwt.Service
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *logger.Logger
}

func NewHandler(hub *Hub, relay *Relay, jwtService *jwt.Service, allowedOrigins []string, sendBuffer int, log *logger.Logger) *Handler {
	return &Handler{
		hub:   hub,
		relay: relay,
		jwt:   jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// ServeWS handles GET /ws?token=<jwt>. Browsers cannot set headers on
// websocket handshakes, so the token rides in the query string.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": "token query parameter is required",
		}})
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": "invalid or expired token",
		}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, claims.UserID, claims.Name, h.sendBuffer, h.log)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.relay)
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
