package handler

import (
	"net/http"

	"yolodetect/internal/dto"
)

// HealthHandler reports liveness. It does not look at the model.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
	}
}
