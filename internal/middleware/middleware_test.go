package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"yolodetect/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"wildcard", []string{"*"}, "http://ui.local", http.MethodPost, false, http.StatusOK, "*"},
		{"listed origin", []string{"http://ui.local"}, "http://ui.local", http.MethodGet, false, http.StatusOK, "http://ui.local"},
		{"unlisted origin", []string{"http://ui.local"}, "http://evil.local", http.MethodGet, false, http.StatusOK, ""},
		{"no origin header", []string{"*"}, "", http.MethodGet, false, http.StatusOK, ""},
		{"preflight", []string{"*"}, "http://ui.local", http.MethodOptions, true, http.StatusNoContent, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/predict", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()

			CORS(tt.origins)(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Expected Allow-Origin %q, got %q", tt.wantAllow, got)
			}
		})
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := Logging(logger.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/predict", nil))

	out := buf.String()
	if !strings.Contains(out, "status=422") || !strings.Contains(out, "path=/predict") {
		t.Errorf("Expected status and path in log entry, got %q", out)
	}
	if !strings.Contains(out, "level=warning") {
		t.Errorf("Expected warning level for 4xx, got %q", out)
	}
}
