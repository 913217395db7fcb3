package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"yolodetect/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for PostgreSQL.
type DetectionRepository struct {
	db *DB
}

func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds detections in one round trip.
func (r *DetectionRepository) InsertBatch(ctx context.Context, detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertDetections(ctx, tx, detections); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertDetections(ctx context.Context, tx pgx.Tx, detections []model.Detection) error {
	batch := &pgx.Batch{}
	for _, d := range detections {
		batch.Queue(`
			INSERT INTO detections (prediction_id, class_id, class_name, confidence, x1, y1, x2, y2)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, d.PredictionID, d.ClassID, d.ClassName, d.Confidence, d.X1, d.Y1, d.X2, d.Y2)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert detections: %w", err)
	}
	return nil
}

func (r *DetectionRepository) GetByPredictionID(ctx context.Context, predictionID int64) ([]model.Detection, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, prediction_id, class_id, class_name, confidence, x1, y1, x2, y2
		FROM detections WHERE prediction_id = $1 ORDER BY id
	`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.Detection
	for rows.Next() {
		var d model.Detection
		if err := rows.Scan(&d.ID, &d.PredictionID, &d.ClassID, &d.ClassName, &d.Confidence, &d.X1, &d.Y1, &d.X2, &d.Y2); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

func (r *DetectionRepository) GetClassNamesByPredictionID(ctx context.Context, predictionID int64) ([]string, error) {
	return r.queryNames(ctx, `SELECT DISTINCT class_name FROM detections WHERE prediction_id = $1 ORDER BY class_name`, predictionID)
}

func (r *DetectionRepository) GetAllClassNames(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `SELECT DISTINCT class_name FROM detections ORDER BY class_name`)
}

func (r *DetectionRepository) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query class names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan class names: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
