package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"potholeserver/internal/logger"
	"potholeserver/internal/service/events"
)

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()

	hub := NewHubService(logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubService_Publish(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ev := events.NewPotholeEvent("s1", 101, 3.5, []byte("jpg")).WithLocation(1, 2)
	require.NoError(t, hub.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 3.5, got.DamagePercentage)
}

func TestHubService_Unregister(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubService_BroadcastNeverBlocks(t *testing.T) {
	// Run loop not started: the queue fills up and further messages are dropped.
	hub := NewHubService(logger.NewDiscard())
	for i := 0; i < broadcastBuffer; i++ {
		require.True(t, hub.Broadcast([]byte("x")))
	}
	assert.False(t, hub.Broadcast([]byte("x")))
	assert.Error(t, hub.Publish(context.Background(), events.Event{}))
}
