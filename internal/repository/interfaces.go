package repository

import (
	"context"

	"yolodetect/internal/dto"
	"yolodetect/internal/model"
)

// PredictionRepository stores archived predictions.
type PredictionRepository interface {
	// Create operations
	Insert(ctx context.Context, p *model.Prediction) (int64, error)
	// InsertWithDetections stores p and its detections atomically.
	InsertWithDetections(ctx context.Context, p *model.Prediction, detections []model.Detection) (int64, error)

	// Read operations; a missing row is (nil, nil)
	GetByID(ctx context.Context, id int64) (*model.Prediction, error)
	GetByFilename(ctx context.Context, filename string) (*model.Prediction, error)
	GetAll(ctx context.Context, filter *dto.PredictionFilters) ([]model.Prediction, error)
	GetTotalCount(ctx context.Context, filter *dto.PredictionFilters) (int, error)

	// Delete operations
	DeleteAll(ctx context.Context) error
}

// DetectionRepository stores the detections of archived predictions.
type DetectionRepository interface {
	InsertBatch(ctx context.Context, detections []model.Detection) error

	GetByPredictionID(ctx context.Context, predictionID int64) ([]model.Detection, error)
	GetClassNamesByPredictionID(ctx context.Context, predictionID int64) ([]string, error)
	GetAllClassNames(ctx context.Context) ([]string, error)
}

// Store bundles both repositories over one database.
type Store struct {
	Predictions PredictionRepository
	Detections  DetectionRepository
	Close       func() error
}
