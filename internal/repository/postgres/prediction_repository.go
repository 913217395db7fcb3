package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"yolodetect/internal/dto"
	"yolodetect/internal/model"
)

// PredictionRepository implements repository.PredictionRepository for PostgreSQL.
type PredictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `p.id, p.request_id, p.source, p.filename, p.filepath, p.filesize,
	p.image_width, p.image_height, p.num_detections, p.created_at`

func scanPrediction(row pgx.Row) (*model.Prediction, error) {
	var p model.Prediction
	err := row.Scan(&p.ID, &p.RequestID, &p.Source, &p.Filename, &p.FilePath, &p.FileSize,
		&p.ImageWidth, &p.ImageHeight, &p.NumDetections, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPrediction(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, p *model.Prediction) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO predictions (request_id, source, filename, filepath, filesize,
			image_width, image_height, num_detections, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.RequestID, p.Source, p.Filename, p.FilePath, p.FileSize,
		p.ImageWidth, p.ImageHeight, p.NumDetections, p.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}
	return id, nil
}

func (r *PredictionRepository) Insert(ctx context.Context, p *model.Prediction) (int64, error) {
	return insertPrediction(ctx, r.db.Pool(), p)
}

// InsertWithDetections adds a prediction and its detections in one
// transaction. Detection PredictionIDs are set to the new id.
func (r *PredictionRepository) InsertWithDetections(ctx context.Context, p *model.Prediction, detections []model.Detection) (int64, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := insertPrediction(ctx, tx, p)
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

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit prediction: %w", err)
	}
	return id, nil
}

func (r *PredictionRepository) GetByID(ctx context.Context, id int64) (*model.Prediction, error) {
	return r.getOne(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.id = $1`, id)
}

func (r *PredictionRepository) GetByFilename(ctx context.Context, filename string) (*model.Prediction, error) {
	return r.getOne(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.filename = $1`, filename)
}

func (r *PredictionRepository) getOne(ctx context.Context, query string, arg any) (*model.Prediction, error) {
	p, err := scanPrediction(r.db.Pool().QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

func filterClause(filter *dto.PredictionFilters) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}

	if filter == nil {
		return where, args
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		where += fmt.Sprintf(" AND p.source = $%d", len(args))
	}
	if filter.ClassName != "" {
		args = append(args, filter.ClassName)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM detections d WHERE d.prediction_id = p.id AND d.class_name = $%d)", len(args))
	}
	return where, args
}

// GetAll returns predictions matching filter, newest first.
func (r *PredictionRepository) GetAll(ctx context.Context, filter *dto.PredictionFilters) ([]model.Prediction, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + predictionColumns + ` FROM predictions p` + where + ` ORDER BY p.created_at DESC, p.id DESC`

	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
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
	where, args := filterClause(filter)

	var count int
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM predictions p`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// DeleteAll removes every prediction; detections go with them by cascade.
func (r *PredictionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, `TRUNCATE predictions, detections RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}
