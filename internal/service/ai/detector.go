package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"yolodetect/internal/config"
	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
	"yolodetect/internal/service/ai/yolo"
)

// DetectorService owns the loaded model instances and turns images into
// DetectionResults. It is safe for concurrent use.
type DetectorService struct {
	backends  chan Backend
	all       []Backend
	opts      yolo.Options
	maxPixels int
	logger    *logger.Logger

	closeOnce sync.Once
}

// NewDetectorService loads cfg.InferenceWorkers model instances through open.
// Any failure is returned as *ModelError and nothing is left open.
func NewDetectorService(cfg *config.Config, logger *logger.Logger, open BackendFactory) (*DetectorService, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, &ModelError{Path: cfg.ModelPath, Err: fmt.Errorf("model file not found: %w", err)}
	}

	labels, err := yolo.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, &ModelError{Path: cfg.ModelPath, Err: err}
	}

	workers := cfg.InferenceWorkers
	if workers < 1 {
		workers = 1
	}

	s := &DetectorService{
		backends:  make(chan Backend, workers),
		logger:    logger,
		maxPixels: cfg.MaxImagePixels,
		opts: yolo.Options{
			InputSize:     cfg.InputSize,
			ConfThreshold: cfg.ConfThreshold,
			IoUThreshold:  cfg.IoUThreshold,
			MaxDetections: cfg.MaxDetections,
			Labels:        labels,
		},
	}

	bopts := BackendOptions{
		ModelPath:  cfg.ModelPath,
		InputSize:  cfg.InputSize,
		NumClasses: len(labels),
		Device:     cfg.Device,
		LibPath:    cfg.ONNXRuntimeLib,
	}
	for i := 0; i < workers; i++ {
		b, err := open(bopts)
		if err != nil {
			s.Close()
			return nil, &ModelError{Path: cfg.ModelPath, Err: err}
		}
		s.all = append(s.all, b)
		s.backends <- b
	}

	s.logger.Info("Detection model %s loaded (%d instance(s), %d classes)", cfg.ModelPath, workers, len(labels))
	return s, nil
}

// Detect decodes data and runs detection on it.
func (s *DetectorService) Detect(ctx context.Context, data []byte) (dto.DetectionResult, error) {
	img, err := DecodeImage(data, s.maxPixels)
	if err != nil {
		return dto.DetectionResult{}, err
	}
	return s.DetectImage(ctx, img)
}

// DetectImage runs detection on an already decoded image.
func (s *DetectorService) DetectImage(ctx context.Context, img image.Image) (dto.DetectionResult, error) {
	if img == nil {
		return dto.DetectionResult{}, &InputError{Reason: "no image"}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return dto.DetectionResult{}, &InputError{Reason: "image has no pixels"}
	}

	var backend Backend
	select {
	case backend = <-s.backends:
	case <-ctx.Done():
		return dto.DetectionResult{}, ctx.Err()
	}
	defer func() { s.backends <- backend }()

	tensor, err := s.infer(backend, img)
	if err != nil {
		return dto.DetectionResult{}, &InferenceError{Err: err}
	}

	opts := s.opts
	opts.ImageWidth = bounds.Dx()
	opts.ImageHeight = bounds.Dy()

	return dto.NewDetectionResult(opts.ImageWidth, opts.ImageHeight, yolo.Decode(tensor, opts)), nil
}

// infer shields callers from panics inside native backends.
func (s *DetectorService) infer(backend Backend, img image.Image) (tensor yolo.Tensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return backend.Infer(img)
}

// Close releases every model instance.
func (s *DetectorService) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for _, b := range s.all {
			if err := b.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
