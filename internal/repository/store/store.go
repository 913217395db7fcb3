// Package store opens the prediction history for a DSN.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yolodetect/internal/repository"
	"yolodetect/internal/repository/postgres"
	"yolodetect/internal/repository/sqlite"
)

// IsPostgres reports whether dsn is a PostgreSQL connection URL.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open picks PostgreSQL for postgres:// URLs and SQLite for anything else.
func Open(ctx context.Context, dsn string) (*repository.Store, error) {
	if IsPostgres(dsn) {
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &repository.Store{
			Predictions: postgres.NewPredictionRepository(db),
			Detections:  postgres.NewDetectionRepository(db),
			Close:       db.Close,
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(dsn)
	if err != nil {
		return nil, err
	}
	return &repository.Store{
		Predictions: sqlite.NewPredictionRepository(db),
		Detections:  sqlite.NewDetectionRepository(db),
		Close:       db.Close,
	}, nil
}
