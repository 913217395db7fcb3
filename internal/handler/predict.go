package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"yolodetect/internal/config"
	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
)

// Predictor runs detection on an encoded image.
type Predictor interface {
	Predict(ctx context.Context, data []byte, source string) (dto.DetectionResult, error)
}

// PredictHandler accepts a multipart upload in the "file" field and answers
// with the DetectionResult.
func PredictHandler(predictor Predictor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	limit := cfg.MaxUploadBytes()

	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("upload exceeds %d MB", cfg.MaxUploadMB))
				return
			}
			writeError(w, http.StatusUnprocessableEntity, "expected a multipart/form-data body with a 'file' field")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "missing form field 'file'")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "failed to read uploaded file")
			return
		}
		if len(data) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "uploaded file is empty")
			return
		}

		result, err := predictor.Predict(r.Context(), data, "http")
		if err != nil {
			code, message := errorStatus(err, logger)
			writeError(w, code, message)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
