package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yolodetect/internal/dto"
	"yolodetect/internal/model"
)

// ========================================
// Helpers
// ========================================

func setupTestDB(t *testing.T) (*DB, *PredictionRepository, *DetectionRepository) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, NewPredictionRepository(db), NewDetectionRepository(db)
}

func insertPrediction(t *testing.T, preds *PredictionRepository, dets *DetectionRepository, name, source string, at time.Time, classes ...string) int64 {
	t.Helper()

	ctx := context.Background()
	id, err := preds.Insert(ctx, &model.Prediction{
		RequestID:     "req-" + name,
		Source:        source,
		Filename:      name + ".png",
		FilePath:      "/archive/" + name + ".png",
		FileSize:      2048,
		ImageWidth:    640,
		ImageHeight:   480,
		NumDetections: len(classes),
		CreatedAt:     at,
	})
	if err != nil {
		t.Fatalf("Failed to insert prediction: %v", err)
	}

	var batch []model.Detection
	for i, c := range classes {
		batch = append(batch, model.Detection{
			PredictionID: id,
			ClassID:      i,
			ClassName:    c,
			Confidence:   0.9 - float64(i)*0.1,
			X1:           10, Y1: 20, X2: 110, Y2: 220,
		})
	}
	if err := dets.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("Failed to insert detections: %v", err)
	}
	return id
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	insertPrediction(t, NewPredictionRepository(db), NewDetectionRepository(db), "a", "http", time.Now())
	db.Close()

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	count, err := NewPredictionRepository(db).GetTotalCount(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 prediction after reopen, got %d", count)
	}
}

// ========================================
// PredictionRepository Tests
// ========================================

func TestPredictionRepository_InsertAndGet(t *testing.T) {
	_, preds, dets := setupTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	id := insertPrediction(t, preds, dets, "first", "http", at, "person", "dog")

	p, err := preds.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if p == nil {
		t.Fatal("Expected prediction, got nil")
	}
	if p.Filename != "first.png" || p.Source != "http" || p.NumDetections != 2 {
		t.Errorf("Unexpected prediction %+v", p)
	}
	if !p.CreatedAt.Equal(at) {
		t.Errorf("Expected created_at %v, got %v", at, p.CreatedAt)
	}

	byName, err := preds.GetByFilename(ctx, "first.png")
	if err != nil || byName == nil || byName.ID != id {
		t.Errorf("GetByFilename returned %+v, %v", byName, err)
	}
}

func TestPredictionRepository_GetMissing(t *testing.T) {
	_, preds, _ := setupTestDB(t)

	p, err := preds.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil for missing prediction, got %+v", p)
	}
}

func TestPredictionRepository_DuplicateFilename(t *testing.T) {
	_, preds, _ := setupTestDB(t)
	ctx := context.Background()

	p := &model.Prediction{RequestID: "r", Source: "http", Filename: "dup.png", FilePath: "/dup.png", CreatedAt: time.Now()}
	if _, err := preds.Insert(ctx, p); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if _, err := preds.Insert(ctx, p); err == nil {
		t.Error("Expected error for duplicate filename")
	}
}

func TestPredictionRepository_Filters(t *testing.T) {
	_, preds, dets := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	insertPrediction(t, preds, dets, "p1", "http", base, "person")
	insertPrediction(t, preds, dets, "p2", "stream", base.Add(time.Minute), "car", "person")
	insertPrediction(t, preds, dets, "p3", "http", base.Add(2*time.Minute), "dog")
	insertPrediction(t, preds, dets, "p4", "http", base.Add(3*time.Minute))

	tests := []struct {
		name     string
		filter   *dto.PredictionFilters
		expected []string
		total    int
	}{
		{"no filter", &dto.PredictionFilters{}, []string{"p4.png", "p3.png", "p2.png", "p1.png"}, 4},
		{"by source", &dto.PredictionFilters{Source: "stream"}, []string{"p2.png"}, 1},
		{"by class", &dto.PredictionFilters{ClassName: "person"}, []string{"p2.png", "p1.png"}, 2},
		{"source and class", &dto.PredictionFilters{Source: "http", ClassName: "person"}, []string{"p1.png"}, 1},
		{"paged", &dto.PredictionFilters{Limit: 2, Offset: 1}, []string{"p3.png", "p2.png"}, 4},
		{"no match", &dto.PredictionFilters{ClassName: "zebra"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := preds.GetAll(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d predictions, got %d", len(tt.expected), len(got))
			}
			for i, p := range got {
				if p.Filename != tt.expected[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.expected[i], p.Filename)
				}
			}

			total, err := preds.GetTotalCount(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetTotalCount failed: %v", err)
			}
			if total != tt.total {
				t.Errorf("Expected total %d, got %d", tt.total, total)
			}
		})
	}
}

func TestPredictionRepository_DeleteAll(t *testing.T) {
	_, preds, dets := setupTestDB(t)
	ctx := context.Background()

	id := insertPrediction(t, preds, dets, "gone", "http", time.Now(), "cat")

	if err := preds.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count, _ := preds.GetTotalCount(ctx, nil); count != 0 {
		t.Errorf("Expected 0 predictions, got %d", count)
	}
	if left, _ := dets.GetByPredictionID(ctx, id); len(left) != 0 {
		t.Errorf("Expected detections removed, got %d", len(left))
	}
}

func TestPredictionRepository_InsertWithDetections(t *testing.T) {
	_, preds, dets := setupTestDB(t)
	ctx := context.Background()

	p := &model.Prediction{RequestID: "r1", Source: "http", Filename: "tx.png", FilePath: "/tx.png", NumDetections: 2, CreatedAt: time.Now()}
	id, err := preds.InsertWithDetections(ctx, p, []model.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.8, X1: 1, Y1: 2, X2: 3, Y2: 4},
		{ClassID: 2, ClassName: "car", Confidence: 0.6, X1: 5, Y1: 6, X2: 7, Y2: 8},
	})
	if err != nil {
		t.Fatalf("InsertWithDetections failed: %v", err)
	}

	got, err := dets.GetByPredictionID(ctx, id)
	if err != nil {
		t.Fatalf("GetByPredictionID failed: %v", err)
	}
	if len(got) != 2 || got[0].PredictionID != id {
		t.Errorf("Expected 2 detections linked to %d, got %+v", id, got)
	}
}

func TestPredictionRepository_InsertWithDetectionsRollsBack(t *testing.T) {
	_, preds, _ := setupTestDB(t)
	ctx := context.Background()

	p := &model.Prediction{RequestID: "r1", Source: "http", Filename: "bad.png", FilePath: "/bad.png", NumDetections: 1, CreatedAt: time.Now()}
	_, err := preds.InsertWithDetections(ctx, p, []model.Detection{
		{ClassName: "person", Confidence: 1.5},
	})
	if err == nil {
		t.Fatal("Expected error for a detection outside the confidence range")
	}

	left, err := preds.GetByFilename(ctx, "bad.png")
	if err != nil {
		t.Fatalf("GetByFilename failed: %v", err)
	}
	if left != nil {
		t.Errorf("Prediction row survived a failed detection insert: %+v", left)
	}
}

// ========================================
// DetectionRepository Tests
// ========================================

func TestDetectionRepository_Queries(t *testing.T) {
	_, preds, dets := setupTestDB(t)
	ctx := context.Background()

	id := insertPrediction(t, preds, dets, "d1", "http", time.Now(), "person", "dog", "person")
	insertPrediction(t, preds, dets, "d2", "http", time.Now(), "car")

	got, err := dets.GetByPredictionID(ctx, id)
	if err != nil {
		t.Fatalf("GetByPredictionID failed: %v", err)
	}
	if len(got) != 3 || got[0].ClassName != "person" || got[1].ClassName != "dog" {
		t.Errorf("Unexpected detections %+v", got)
	}
	if got[0].X2 != 110 || got[0].Y2 != 220 {
		t.Errorf("Box not stored: %+v", got[0])
	}

	names, err := dets.GetClassNamesByPredictionID(ctx, id)
	if err != nil {
		t.Fatalf("GetClassNamesByPredictionID failed: %v", err)
	}
	if len(names) != 2 || names[0] != "dog" || names[1] != "person" {
		t.Errorf("Expected [dog person], got %v", names)
	}

	all, err := dets.GetAllClassNames(ctx)
	if err != nil {
		t.Fatalf("GetAllClassNames failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 distinct classes, got %v", all)
	}
}

func TestDetectionRepository_EmptyBatch(t *testing.T) {
	_, _, dets := setupTestDB(t)
	if err := dets.InsertBatch(context.Background(), nil); err != nil {
		t.Errorf("Expected nil error for empty batch, got %v", err)
	}
}
