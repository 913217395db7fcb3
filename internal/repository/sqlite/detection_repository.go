package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"yolodetect/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(ctx context.Context, detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDetections(ctx, tx, detections); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDetections(ctx context.Context, tx *sql.Tx, detections []model.Detection) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (prediction_id, class_id, class_name, confidence, x1, y1, x2, y2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		if _, err := stmt.ExecContext(ctx, d.PredictionID, d.ClassID, d.ClassName, d.Confidence, d.X1, d.Y1, d.X2, d.Y2); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

// GetByPredictionID returns detections in the order they were stored.
func (r *DetectionRepository) GetByPredictionID(ctx context.Context, predictionID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, prediction_id, class_id, class_name, confidence, x1, y1, x2, y2
		FROM detections WHERE prediction_id = ? ORDER BY id
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
	return r.queryNames(ctx, `SELECT DISTINCT class_name FROM detections WHERE prediction_id = ? ORDER BY class_name`, predictionID)
}

func (r *DetectionRepository) GetAllClassNames(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `SELECT DISTINCT class_name FROM detections ORDER BY class_name`)
}

func (r *DetectionRepository) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query class names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
