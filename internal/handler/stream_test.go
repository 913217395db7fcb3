package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"yolodetect/internal/dto"
	"yolodetect/internal/service"
	ws "yolodetect/internal/service/websocket"
)

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("Reply is not JSON: %q", msg)
	}
}

func TestStreamHandler(t *testing.T) {
	manager := service.NewManager(&fakeDetector{result: dto.NewDetectionResult(0, 0, []dto.Detection{
		{ClassName: "person", Confidence: 0.9, Box: [4]float64{0, 0, 2, 2}},
	})}, nil, nil, testConfig(), testLogger())
	server := httptest.NewServer(StreamHandler(manager, testConfig(), testLogger()))
	defer server.Close()

	conn := dial(t, server, "/ws/detect")

	// Text frames are rejected but the connection stays open.
	conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	var errBody dto.ErrorResponse
	readJSON(t, conn, &errBody)
	if errBody.Message == "" {
		t.Error("Expected an error reply for a text frame")
	}

	conn.WriteMessage(websocket.BinaryMessage, []byte("not an image"))
	errBody = dto.ErrorResponse{}
	readJSON(t, conn, &errBody)
	if !strings.Contains(errBody.Message, "invalid image") {
		t.Errorf("Expected invalid image reply, got %q", errBody.Message)
	}

	conn.WriteMessage(websocket.BinaryMessage, pngData(t, 8, 6))
	var result dto.DetectionResult
	readJSON(t, conn, &result)
	if result.NumDetections != 1 || result.ImageWidth != 8 || result.ImageHeight != 6 {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestEventsHandler_ReceivesPredictions(t *testing.T) {
	hub := ws.NewHubService(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	manager := service.NewManager(&fakeDetector{result: dto.NewDetectionResult(0, 0, []dto.Detection{
		{ClassName: "dog", Confidence: 0.6, Box: [4]float64{0, 0, 3, 3}},
	})}, hub, nil, testConfig(), testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", EventsHandler(manager, testConfig(), testLogger()))
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server, "/ws/events")

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Viewer was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := manager.Predict(context.Background(), pngData(t, 4, 4), "http"); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	var event dto.PredictionEvent
	readJSON(t, conn, &event)
	if event.Source != "http" || event.NumDetections != 1 || len(event.Classes) != 1 || event.Classes[0] != "dog" {
		t.Errorf("Unexpected event %+v", event)
	}
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		origins []string
		origin  string
		allowed bool
	}{
		{[]string{"*"}, "http://any.local", true},
		{[]string{"http://ui.local"}, "http://ui.local", true},
		{[]string{"http://ui.local"}, "http://other.local", false},
		{[]string{"http://ui.local"}, "", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/detect", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := NewUpgrader(tt.origins).CheckOrigin(req); got != tt.allowed {
			t.Errorf("origins %v, origin %q: expected %v, got %v", tt.origins, tt.origin, tt.allowed, got)
		}
	}
}
