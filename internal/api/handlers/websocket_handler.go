package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/websocket"
)

// HandleWebSocket handles GET /v1/ws, the live activity feed for dashboards
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	upgrader := gorilla.Upgrader{
		ReadBufferSize:  h.ReadBufferSize,
		WriteBufferSize: h.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, userID, activity.DashboardType, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
