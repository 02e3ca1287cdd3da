package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/websocket"
)

// Handlers holds all handler dependencies. DB, Redis and Webhook are optional.
type Handlers struct {
	DB      *sql.DB
	Redis   *redis.Client
	Stats   stats.Repository
	Hub     *websocket.Hub
	Webhook http.Handler
	Logger  *logger.Logger

	ReadBufferSize  int
	WriteBufferSize int
}

// NewHandlers creates a new Handlers instance
func NewHandlers(db *sql.DB, redisClient *redis.Client, statsRepo stats.Repository, hub *websocket.Hub, log *logger.Logger) *Handlers {
	return &Handlers{
		DB:              db,
		Redis:           redisClient,
		Stats:           statsRepo,
		Hub:             hub,
		Logger:          log,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// WithWebhook sets the handler behind POST /telegram/webhook
func (h *Handlers) WithWebhook(wh http.Handler) *Handlers {
	h.Webhook = wh
	return h
}

func (h *Handlers) ping(ctx context.Context) map[string]string {
	checks := map[string]string{}
	if h.DB != nil {
		checks["postgres"] = status(h.DB.PingContext(ctx))
	}
	if h.Redis != nil {
		checks["redis"] = status(h.Redis.Ping(ctx).Err())
	}
	return checks
}

func status(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
