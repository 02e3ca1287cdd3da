package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := h.ping(ctx)
	code := http.StatusOK
	overall := "healthy"
	for _, s := range checks {
		if s != "up" {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
	}

	body := gin.H{"status": overall, "checks": checks}
	if h.Hub != nil {
		body["dashboards"] = h.Hub.GetActiveConnections()
	}
	c.JSON(code, body)
}

// GetStats handles GET /v1/stats
func (h *Handlers) GetStats(c *gin.Context) {
	overview, err := h.Stats.Overview(c.Request.Context(), time.Now())
	if err != nil {
		h.Logger.Error("Failed to load overview", logger.Err(err))
		appErr := apperrors.GetAppError(err)
		c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// TelegramWebhook handles POST /telegram/webhook
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if h.Webhook == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook mode is disabled"})
		return
	}
	h.Webhook.ServeHTTP(c.Writer, c.Request)
}
