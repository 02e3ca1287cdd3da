package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/api/handlers"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/storage/memory"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/websocket"
)

type brokenStats struct{}

func (brokenStats) Overview(context.Context, time.Time) (*stats.Overview, error) {
	return nil, apperrors.Storage("overview", errors.New("connection refused"))
}

func newRouter(h *handlers.Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, h, nil)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	log := logger.NewNop()
	store := memory.New()

	t.Run("no backing services", func(t *testing.T) {
		r := newRouter(handlers.NewHandlers(nil, nil, store.Stats, nil, log))
		w := serve(r, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("redis down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { client.Close() })
		mr.Close()

		r := newRouter(handlers.NewHandlers(nil, client, store.Stats, nil, log))
		w := serve(r, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"redis":"down"`)
	})
}

func TestStats(t *testing.T) {
	log := logger.NewNop()
	store := memory.New()
	require.NoError(t, store.Users.Upsert(context.Background(), &user.User{ID: 10, FirstName: "Sara", Role: user.RoleClient}))

	r := newRouter(handlers.NewHandlers(nil, nil, store.Stats, nil, log))
	w := serve(r, http.MethodGet, "/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var got stats.Overview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.TotalUsers)
	assert.Equal(t, 1, got.Clients)

	r = newRouter(handlers.NewHandlers(nil, nil, brokenStats{}, nil, log))
	w = serve(r, http.MethodGet, "/v1/stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeStorageUnavailable)
}

func TestTelegramWebhook(t *testing.T) {
	log := logger.NewNop()
	h := handlers.NewHandlers(nil, nil, memory.New().Stats, nil, log)

	w := serve(newRouter(h), http.MethodPost, WebhookPath)
	assert.Equal(t, http.StatusNotFound, w.Code)

	called := false
	h.WithWebhook(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	w = serve(newRouter(h), http.MethodPost, WebhookPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestWebSocket(t *testing.T) {
	log := logger.NewNop()
	hub := websocket.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(newRouter(handlers.NewHandlers(nil, nil, memory.New().Stats, hub, log)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?user_id=ops-1"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.GetClientsByUserType("admin") == 1 }, time.Second, 10*time.Millisecond)
}
