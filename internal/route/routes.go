package route

import (
	"net/http"

	"yolodetect/internal/config"
	"yolodetect/internal/handler"
	"yolodetect/internal/logger"
	"yolodetect/internal/middleware"
	"yolodetect/internal/repository"
	"yolodetect/internal/service"
)

// SetupRoutes registers the API endpoints and wraps the mux with CORS and
// request logging. History endpoints exist only when store is non-nil.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger, store *repository.Store) http.Handler {
	mux := http.NewServeMux()

	// Prediction API
	mux.HandleFunc("/health", handler.HealthHandler())
	mux.HandleFunc("/predict", handler.PredictHandler(manager, cfg, logger))
	mux.HandleFunc("/ws/detect", handler.StreamHandler(manager, cfg, logger))
	mux.HandleFunc("/ws/events", handler.EventsHandler(manager, cfg, logger))

	// Log endpoints
	mux.HandleFunc("/logs", handler.ShowLogsHandler(logger))
	mux.HandleFunc("/logs/clear", handler.ClearLogsHandler(logger))

	// History endpoints
	if store != nil {
		mux.HandleFunc("/api/predictions", handler.ListPredictionsHandler(store, logger))
		mux.HandleFunc("/api/predictions/view", handler.ViewPredictionHandler(store, logger))
		mux.HandleFunc("/api/predictions/image", handler.PredictionImageHandler(cfg.ArchiveDirectory))
		mux.HandleFunc("/api/predictions/clear", handler.ClearPredictionsHandler(cfg.ArchiveDirectory, store, logger))
	}

	return middleware.Logging(logger)(middleware.CORS(cfg.CORSOrigins)(mux))
}
