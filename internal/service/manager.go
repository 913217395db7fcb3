package service

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"yolodetect/internal/config"
	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
	"yolodetect/internal/service/ai"
	"yolodetect/internal/service/storage"
	"yolodetect/internal/service/websocket"
)

// Detector runs the model on a decoded image.
type Detector interface {
	DetectImage(ctx context.Context, img image.Image) (dto.DetectionResult, error)
}

// EventPublisher receives one event per successful prediction.
type EventPublisher interface {
	Publish(event dto.PredictionEvent)
}

// Archiver keeps predictions for later review.
type Archiver interface {
	Add(p dto.ArchivedPrediction) bool
}

// Manager coordinates one prediction: decode, detect, notify viewers and
// archive when enabled.
type Manager struct {
	detector Detector
	events   EventPublisher
	archive  Archiver
	logger   *logger.Logger

	maxPixels  int
	hubService *websocket.HubService
}

// NewManager wires the services. hub and archive may be nil.
func NewManager(detector Detector, hub *websocket.HubService, archive *storage.ArchiveService, config *config.Config, logger *logger.Logger) *Manager {
	m := &Manager{
		detector:   detector,
		logger:     logger,
		maxPixels:  config.MaxImagePixels,
		hubService: hub,
	}
	if hub != nil {
		m.events = hub
	}
	if archive != nil {
		m.archive = archive
	}
	return m
}

// Predict decodes data, runs detection and fans the result out. source tags
// where the image came from ("http", "stream").
func (m *Manager) Predict(ctx context.Context, data []byte, source string) (dto.DetectionResult, error) {
	img, err := ai.DecodeImage(data, m.maxPixels)
	if err != nil {
		return dto.DetectionResult{}, err
	}

	start := time.Now()
	result, err := m.detector.DetectImage(ctx, img)
	if err != nil {
		return dto.DetectionResult{}, err
	}

	requestID := uuid.NewString()
	now := time.Now().UTC()

	m.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"source":     source,
		"detections": result.NumDetections,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("prediction completed")

	if m.events != nil {
		m.events.Publish(dto.PredictionEvent{
			RequestID:     requestID,
			Source:        source,
			Timestamp:     now,
			NumDetections: result.NumDetections,
			Classes:       result.Classes(),
		})
	}

	if m.archive != nil {
		m.archive.Add(dto.ArchivedPrediction{
			RequestID: requestID,
			Source:    source,
			Timestamp: now,
			Image:     img,
			Result:    result,
		})
	}

	return result, nil
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hubService
}
