// Package postgres keeps prediction history in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is a connection pool with the history schema applied.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to connString and makes sure the schema exists.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			source TEXT NOT NULL,
			filename TEXT NOT NULL UNIQUE,
			filepath TEXT NOT NULL,
			filesize BIGINT DEFAULT 0,
			image_width INT DEFAULT 0,
			image_height INT DEFAULT 0,
			num_detections INT DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS detections (
			id BIGSERIAL PRIMARY KEY,
			prediction_id BIGINT NOT NULL REFERENCES predictions(id) ON DELETE CASCADE,
			class_id INT NOT NULL,
			class_name TEXT NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0 CHECK (confidence >= 0 AND confidence <= 1),
			x1 DOUBLE PRECISION DEFAULT 0,
			y1 DOUBLE PRECISION DEFAULT 0,
			x2 DOUBLE PRECISION DEFAULT 0,
			y2 DOUBLE PRECISION DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_source ON predictions (source);
		CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at);
		CREATE INDEX IF NOT EXISTS idx_detections_class_name ON detections (class_name);
		CREATE INDEX IF NOT EXISTS idx_detections_prediction_id ON detections (prediction_id);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Pool returns the underlying pool for use by repositories.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}
