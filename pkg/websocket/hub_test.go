package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func TestHub_BroadcastToTypeAndRide(t *testing.T) {
	log := testLogger(t)
	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	admin := NewClient(hub, nil, "1", "admin", log)
	viewer := NewClient(hub, nil, "2", "viewer", log)
	hub.Register(admin)
	hub.Register(viewer)
	require.Eventually(t, func() bool { return hub.GetActiveConnections() == 2 }, time.Second, 10*time.Millisecond)

	sent := hub.BroadcastToType("admin", Message{Type: "ride_created", Data: map[string]int64{"ride_id": 7}})
	assert.Equal(t, 1, sent)

	var msg Message
	require.NoError(t, json.Unmarshal(<-admin.Send, &msg))
	assert.Equal(t, "ride_created", msg.Type)
	assert.Len(t, viewer.Send, 0)

	viewer.HandleMessage([]byte(`{"type":"subscribe","ride_id":7}`))
	assert.True(t, viewer.IsSubscribedToRide(7))
	assert.Equal(t, 1, hub.BroadcastToRide(7, Message{Type: "ride_accepted"}))
	assert.Equal(t, 0, hub.BroadcastToRide(8, Message{Type: "ride_accepted"}))

	viewer.HandleMessage([]byte(`{"type":"unsubscribe","ride_id":7}`))
	assert.False(t, viewer.IsSubscribedToRide(7))
	assert.Equal(t, 1, hub.GetClientsByUserType("admin"))

	hub.Unregister(admin)
	require.Eventually(t, func() bool { return hub.GetActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestClient_Ping(t *testing.T) {
	log := testLogger(t)
	client := NewClient(NewHub(log), nil, "1", "admin", log)

	client.HandleMessage([]byte(`{"type":"ping"}`))

	var msg Message
	require.NoError(t, json.Unmarshal(<-client.Send, &msg))
	assert.Equal(t, "pong", msg.Type)
	assert.NotEmpty(t, client.ID)
}
