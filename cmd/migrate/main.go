package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"yolodetect/internal/dto"
	"yolodetect/internal/model"
	"yolodetect/internal/repository"
	"yolodetect/internal/repository/store"
	"yolodetect/internal/service/storage"
)

func main() {
	archiveDir := flag.String("archive", "archive", "Directory containing archived predictions")
	dsn := flag.String("db", filepath.Join("data", "history.db"), "SQLite path or postgres:// URL")
	flag.Parse()

	fmt.Printf("Indexing archive %s into %s\n", *archiveDir, *dsn)

	ctx := context.Background()
	s, err := store.Open(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	migrated, skipped, err := migrate(ctx, *archiveDir, s)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if migrated == 0 {
		fmt.Println("No new predictions found to migrate")
	} else {
		fmt.Printf("Indexed %d prediction(s)\n", migrated)
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d file(s) (invalid name, unreadable or already indexed)\n", skipped)
	}

	total, err := s.Predictions.GetTotalCount(ctx, nil)
	if err == nil {
		fmt.Printf("Total predictions in history: %d\n", total)
	}
	if classes, err := s.Detections.GetAllClassNames(ctx); err == nil && len(classes) > 0 {
		fmt.Printf("Classes seen: %s\n", strings.Join(classes, ", "))
	}
}

// migrate indexes every "<base>.json" sidecar that has a matching "<base>.png"
// and is not in the history yet.
func migrate(ctx context.Context, dir string, s *repository.Store) (migrated, skipped int, err error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		p, result, err := readEntry(dir, file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		existing, err := s.Predictions.GetByFilename(ctx, p.Filename)
		if err != nil {
			return migrated, skipped, err
		}
		if existing != nil {
			skipped++
			continue
		}

		if err := storage.Index(ctx, s.Predictions, p, result); err != nil {
			return migrated, skipped, err
		}
		migrated++
	}

	return migrated, skipped, nil
}

func readEntry(dir, sidecar string) (*model.Prediction, dto.DetectionResult, error) {
	var result dto.DetectionResult

	ts, source, requestID, err := storage.ParseFileBase(sidecar)
	if err != nil {
		return nil, result, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, sidecar))
	if err != nil {
		return nil, result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, result, fmt.Errorf("invalid sidecar: %w", err)
	}

	imageName := strings.TrimSuffix(sidecar, ".json") + ".png"
	imagePath := filepath.Join(dir, imageName)
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, result, err
	}

	return &model.Prediction{
		RequestID:     requestID,
		Source:        source,
		Filename:      imageName,
		FilePath:      imagePath,
		FileSize:      info.Size(),
		ImageWidth:    result.ImageWidth,
		ImageHeight:   result.ImageHeight,
		NumDetections: len(result.Detections),
		CreatedAt:     ts,
	}, result, nil
}
