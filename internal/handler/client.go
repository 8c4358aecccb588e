package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"potholeserver/internal/logger"
	hub "potholeserver/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers dashboard viewers in the hub so they receive detection events.
func ViewWebsocketHandler(viewers *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		viewers.Register(connection)
		defer viewers.Unregister(connection)

		// Widz nic nie wysyła; czytamy tylko, żeby wykryć rozłączenie
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected normally")
				} else {
					logger.Debug("Viewer disconnected: %v", err)
				}
				return
			}
		}
	}
}
