package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yolodetect/internal/repository/store"
	"yolodetect/internal/service/storage"
)

func writeEntry(t *testing.T, dir, base, sidecar string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, base+".png"), []byte("png"), 0644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".json"), []byte(sidecar), 0644); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	archive := t.TempDir()
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	good := storage.FileBase(ts, "http", "req-1")
	writeEntry(t, archive, good, `{"image_width":64,"image_height":48,"num_detections":2,"detections":[`+
		`{"class_id":0,"class_name":"person","confidence":0.9,"box":[1,2,3,4]},`+
		`{"class_id":2,"class_name":"car","confidence":0.5,"box":[5,6,7,8]}]}`)
	writeEntry(t, archive, "not-an-archive-name", `{}`)
	broken := storage.FileBase(ts.Add(time.Second), "ws", "req-2")
	writeEntry(t, archive, broken, `{"image_width":`)
	orphan := storage.FileBase(ts.Add(2*time.Second), "ws", "req-3")
	if err := os.WriteFile(filepath.Join(archive, orphan+".json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write orphan sidecar: %v", err)
	}

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	migrated, skipped, err := migrate(ctx, archive, s)
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if migrated != 1 || skipped != 3 {
		t.Errorf("Expected 1 migrated and 3 skipped, got %d and %d", migrated, skipped)
	}

	p, err := s.Predictions.GetByFilename(ctx, good+".png")
	if err != nil || p == nil {
		t.Fatalf("Expected indexed prediction, got %v (err %v)", p, err)
	}
	if p.Source != "http" || p.RequestID != "req-1" || p.NumDetections != 2 || !p.CreatedAt.Equal(ts) {
		t.Errorf("Unexpected prediction %+v", p)
	}

	classes, err := s.Detections.GetClassNamesByPredictionID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetClassNamesByPredictionID failed: %v", err)
	}
	if len(classes) != 2 {
		t.Errorf("Expected 2 classes, got %v", classes)
	}

	// A second run finds everything already indexed.
	migrated, _, err = migrate(ctx, archive, s)
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if migrated != 0 {
		t.Errorf("Expected nothing new on second run, got %d", migrated)
	}
}

func TestMigrate_MissingDirectory(t *testing.T) {
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, _, err := migrate(context.Background(), filepath.Join(t.TempDir(), "missing"), s); err == nil {
		t.Error("Expected error for missing archive directory")
	}
}
