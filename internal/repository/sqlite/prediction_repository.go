package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yolodetect/internal/dto"
	"yolodetect/internal/model"
)

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `p.id, p.request_id, p.source, p.filename, p.filepath, p.filesize,
	p.image_width, p.image_height, p.num_detections, p.created_at`

func scanPrediction(row interface{ Scan(...any) error }) (*model.Prediction, error) {
	var p model.Prediction
	err := row.Scan(&p.ID, &p.RequestID, &p.Source, &p.Filename, &p.FilePath, &p.FileSize,
		&p.ImageWidth, &p.ImageHeight, &p.NumDetections, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const insertPredictionQuery = `
	INSERT INTO predictions (request_id, source, filename, filepath, filesize,
		image_width, image_height, num_detections, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertPredictionArgs(p *model.Prediction) []any {
	return []any{p.RequestID, p.Source, p.Filename, p.FilePath, p.FileSize,
		p.ImageWidth, p.ImageHeight, p.NumDetections, p.CreatedAt.UTC()}
}

// Insert adds a prediction record and returns its id.
func (r *PredictionRepository) Insert(ctx context.Context, p *model.Prediction) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, insertPredictionQuery, insertPredictionArgs(p)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	return result.LastInsertId()
}

// InsertWithDetections adds a prediction and its detections in one
// transaction. Detection PredictionIDs are set to the new id.
func (r *PredictionRepository) InsertWithDetections(ctx context.Context, p *model.Prediction, detections []model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, insertPredictionQuery, insertPredictionArgs(p)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(detections) > 0 {
		for i := range detections {
			detections[i].PredictionID = id
		}
		if err := insertDetections(ctx, tx, detections); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prediction: %w", err)
	}
	return id, nil
}

func (r *PredictionRepository) GetByID(ctx context.Context, id int64) (*model.Prediction, error) {
	return r.getOne(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.id = ?`, id)
}

func (r *PredictionRepository) GetByFilename(ctx context.Context, filename string) (*model.Prediction, error) {
	return r.getOne(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.filename = ?`, filename)
}

func (r *PredictionRepository) getOne(ctx context.Context, query string, arg any) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p, err := scanPrediction(r.db.Conn().QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// filterClause builds the WHERE part shared by GetAll and GetTotalCount.
func filterClause(filter *dto.PredictionFilters) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}

	if filter == nil {
		return where, args
	}
	if filter.Source != "" {
		where += " AND p.source = ?"
		args = append(args, filter.Source)
	}
	if filter.ClassName != "" {
		where += " AND EXISTS (SELECT 1 FROM detections d WHERE d.prediction_id = p.id AND d.class_name = ?)"
		args = append(args, filter.ClassName)
	}
	return where, args
}

// GetAll returns predictions matching filter, newest first.
func (r *PredictionRepository) GetAll(ctx context.Context, filter *dto.PredictionFilters) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + predictionColumns + ` FROM predictions p` + where + ` ORDER BY p.created_at DESC, p.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

func (r *PredictionRepository) GetTotalCount(ctx context.Context, filter *dto.PredictionFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions p`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// DeleteAll removes every prediction and its detections.
func (r *PredictionRepository) DeleteAll(ctx context.Context) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}
