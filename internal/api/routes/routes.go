package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/mashawir/ridebot/internal/api/handlers"
)

// WebhookPath receives Telegram updates in webhook mode
const WebhookPath = "/telegram/webhook"

// SetupRoutes configures all HTTP routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	r.GET("/health", h.Health)
	r.POST(WebhookPath, h.TelegramWebhook)

	v1 := r.Group("/v1")
	{
		v1.GET("/stats", h.GetStats)
		v1.GET("/ws", h.HandleWebSocket)
	}
}
