package handler

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"yolodetect/internal/config"
	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
)

// NewUpgrader upgrades HTTP connections to WebSocket for the allowed origins.
// "*" allows every origin.
func NewUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// StreamHandler runs detection on every binary frame of a /ws/detect
// connection. A bad frame gets an error reply; the connection stays open.
func StreamHandler(predictor Predictor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	upgrader := NewUpgrader(cfg.CORSOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		conn.SetReadLimit(cfg.MaxUploadBytes())
		logger.Info("Stream client connected from %s", r.RemoteAddr)

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Stream client disconnected normally")
				} else {
					logger.Warning("Stream client disconnected with error: %v", err)
				}
				return
			}

			if msgType != websocket.BinaryMessage {
				if err := conn.WriteJSON(dto.ErrorResponse{Message: "expected a binary image frame"}); err != nil {
					return
				}
				continue
			}

			var reply any
			result, err := predictor.Predict(r.Context(), data, "stream")
			if err != nil {
				if r.Context().Err() != nil {
					return
				}
				_, message := errorStatus(err, logger)
				reply = dto.ErrorResponse{Message: message}
			} else {
				reply = result
			}

			if err := conn.WriteJSON(reply); err != nil {
				logger.Warning("Stream write failed: %v", err)
				return
			}
		}
	}
}
