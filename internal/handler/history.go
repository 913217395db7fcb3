package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
	"yolodetect/internal/model"
	"yolodetect/internal/repository"
)

const defaultPageSize = 24

// ListPredictionsHandler returns a filtered, paginated page of archived predictions.
func ListPredictionsHandler(store *repository.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		filter := &dto.PredictionFilters{
			Source:    q.Get("source"),
			ClassName: q.Get("class"),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}

		ctx := r.Context()
		predictions, err := store.Predictions.GetAll(ctx, filter)
		if err != nil {
			logger.Error("Error querying predictions: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to query predictions")
			return
		}

		totalCount, err := store.Predictions.GetTotalCount(ctx, filter)
		if err != nil {
			logger.Error("Error counting predictions: %v", err)
			totalCount = len(predictions)
		}

		classes, err := store.Detections.GetAllClassNames(ctx)
		if err != nil {
			logger.Error("Error listing classes: %v", err)
			classes = []string{}
		}

		infos := make([]dto.PredictionInfo, 0, len(predictions))
		for _, p := range predictions {
			names, err := store.Detections.GetClassNamesByPredictionID(ctx, p.ID)
			if err != nil {
				logger.Error("Error getting classes for prediction %d: %v", p.ID, err)
				names = []string{}
			}
			infos = append(infos, predictionInfo(p, names))
		}

		writeJSON(w, http.StatusOK, dto.PredictionsData{
			Predictions: infos,
			Classes:     classes,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewPredictionHandler returns one archived prediction and its stored detections.
func ViewPredictionHandler(store *repository.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "id parameter is required")
			return
		}

		ctx := r.Context()
		p, err := store.Predictions.GetByID(ctx, id)
		if err != nil {
			logger.Error("Error loading prediction %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to load prediction")
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}

		rows, err := store.Detections.GetByPredictionID(ctx, id)
		if err != nil {
			logger.Error("Error loading detections for %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to load detections")
			return
		}

		detections := make([]dto.Detection, 0, len(rows))
		for _, d := range rows {
			detections = append(detections, dto.Detection{
				ClassID:    d.ClassID,
				ClassName:  d.ClassName,
				Confidence: d.Confidence,
				Box:        [4]float64{d.X1, d.Y1, d.X2, d.Y2},
			})
		}
		result := dto.NewDetectionResult(p.ImageWidth, p.ImageHeight, detections)

		writeJSON(w, http.StatusOK, dto.PredictionDetail{
			Prediction: predictionInfo(*p, result.Classes()),
			Result:     result,
		})
	}
}

// PredictionImageHandler serves one annotated image from the archive directory.
func PredictionImageHandler(archiveDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := r.URL.Query().Get("file")
		if file == "" || file != filepath.Base(file) || file == "." || file == ".." {
			writeError(w, http.StatusBadRequest, "file parameter is required")
			return
		}
		http.ServeFile(w, r, filepath.Join(archiveDir, file))
	}
}

// ClearPredictionsHandler deletes every archived file and clears the history database.
func ClearPredictionsHandler(archiveDir string, store *repository.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		files, err := os.ReadDir(archiveDir)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading archive directory: %v", err)
			writeError(w, http.StatusInternalServerError, "unable to read archive directory")
			return
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(archiveDir, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := store.Predictions.DeleteAll(r.Context()); err != nil {
			logger.Error("Error clearing history: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to clear history")
			return
		}

		logger.Info("Prediction archive cleared: %s", archiveDir)
		w.WriteHeader(http.StatusNoContent)
	}
}

func predictionInfo(p model.Prediction, classes []string) dto.PredictionInfo {
	return dto.PredictionInfo{
		ID:            p.ID,
		RequestID:     p.RequestID,
		Image:         p.Filename,
		Source:        p.Source,
		CreatedAt:     p.CreatedAt,
		NumDetections: p.NumDetections,
		Classes:       classes,
	}
}
