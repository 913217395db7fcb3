package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"yolodetect/internal/config"
	"yolodetect/internal/logger"
	"yolodetect/internal/service"
)

// EventsHandler registers /ws/events viewers in the HubService so they
// receive one event per prediction.
func EventsHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	upgrader := NewUpgrader(cfg.CORSOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub := manager.GetWebsocketService()
		hub.Register(connection)
		defer hub.Unregister(connection)

		// Viewers only listen; reading detects when they leave.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
