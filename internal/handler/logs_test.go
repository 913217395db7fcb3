package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"yolodetect/internal/config"
	"yolodetect/internal/logger"
)

func TestLogsHandlers(t *testing.T) {
	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer log.Close()

	log.Info("model loaded from %s", "yolov8n.onnx")

	rr := httptest.NewRecorder()
	ShowLogsHandler(log)(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain, got %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), "model loaded from yolov8n.onnx") {
		t.Errorf("Log entry missing from %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	ClearLogsHandler(log)(rr, httptest.NewRequest(http.MethodGet, "/logs/clear", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET clear, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	ClearLogsHandler(log)(rr, httptest.NewRequest(http.MethodPost, "/logs/clear", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	ShowLogsHandler(log)(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if strings.Contains(rr.Body.String(), "model loaded") {
		t.Error("Expected log file to be empty after clear")
	}
}

func TestShowLogsHandler_WriterOnlyLogger(t *testing.T) {
	rr := httptest.NewRecorder()
	ShowLogsHandler(testLogger())(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a log file, got %d", rr.Code)
	}
}
