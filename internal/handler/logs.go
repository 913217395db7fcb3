package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"yolodetect/internal/logger"
)

// ShowLogsHandler serves the server log file as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLogFile(w, r, logger.LogFile())
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, filePath string) {
	if filePath == "" {
		writeError(w, http.StatusNotFound, "file logging is disabled")
		return
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "log file not found: "+filepath.Base(filePath))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := logger.CleanLogs(); err != nil {
			logger.Error("Failed to clear logs: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to clear logs")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
