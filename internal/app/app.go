package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"yolodetect/internal/config"
	"yolodetect/internal/logger"
	"yolodetect/internal/repository"
	"yolodetect/internal/repository/store"
	"yolodetect/internal/route"
	"yolodetect/internal/service"
	"yolodetect/internal/service/ai"
	"yolodetect/internal/service/ai/gocvnet"
	"yolodetect/internal/service/ai/onnx"
	"yolodetect/internal/service/storage"
	"yolodetect/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config         *config.Config
	logger         *logger.Logger
	detector       *ai.DetectorService
	archiveService *storage.ArchiveService
	hubService     *websocket.HubService
	store          *repository.Store
	manager        *service.Manager
}

// NewApp loads configuration and the model. A model that cannot be loaded is
// an error: the server does not start without one.
func NewApp(ctx context.Context) (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	detector, err := ai.NewDetectorService(cfg, log, BackendFactory(cfg.InferenceBackend))
	if err != nil {
		log.Error("%v", err)
		log.Close()
		return nil, err
	}

	a := &App{
		config:     cfg,
		logger:     log,
		detector:   detector,
		hubService: websocket.NewHubService(log),
	}

	if cfg.ArchiveEnabled() {
		if cfg.HistoryDSN != "" {
			a.store, err = store.Open(ctx, cfg.HistoryDSN)
			if err != nil {
				a.Close()
				return nil, err
			}
			log.Info("History database opened")
		}
		a.archiveService = storage.NewArchiveService(cfg, log, a.store)
	}

	a.manager = service.NewManager(detector, a.hubService, a.archiveService, cfg, log)
	return a, nil
}

// BackendFactory returns the constructor for the configured inference backend.
func BackendFactory(name string) ai.BackendFactory {
	switch name {
	case config.BackendONNXRuntime:
		return onnx.Open
	default:
		return gocvnet.Open
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { a.hubService.Run(bgCtx); done <- struct{}{} }()
	workers := 1
	if a.archiveService != nil {
		workers++
		go func() { a.archiveService.Run(bgCtx); done <- struct{}{} }()
	}

	server := &http.Server{
		Addr:              a.config.Addr(),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger, a.store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Detection server listening on http://%s", server.Addr)
	a.logger.Info("Model: %s (%s on %s)", a.config.ModelPath, a.config.InferenceBackend, a.config.Device)
	if a.archiveService != nil {
		a.logger.Info("Archive: %s", a.archiveService.Dir())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Graceful shutdown failed: %v", err)
		}
	}

	// Stopping the background loops flushes the archive before the store closes.
	stopBackground()
	for i := 0; i < workers; i++ {
		<-done
	}
	return serveErr
}

// Close releases the model, the history store and the log file.
func (a *App) Close() {
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Error("Failed to release model: %v", err)
		}
		a.detector = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close history database: %v", err)
		}
		a.store = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
