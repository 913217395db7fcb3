package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
	"yolodetect/internal/service/ai"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, dto.ErrorResponse{Message: message})
}

// errorStatus maps a prediction error to its HTTP status and client message.
// Failures that are not the caller's fault are logged.
func errorStatus(err error, logger *logger.Logger) (int, string) {
	var inputErr *ai.InputError
	var inferErr *ai.InferenceError

	switch {
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, inputErr.Error()
	case errors.As(err, &inferErr):
		logger.Error("Inference failed: %v", err)
		return http.StatusInternalServerError, inferErr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warning("Prediction abandoned: %v", err)
		return http.StatusServiceUnavailable, "request cancelled before a model instance was free"
	default:
		logger.Error("Unexpected prediction error: %v", err)
		return http.StatusInternalServerError, "internal server error"
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
