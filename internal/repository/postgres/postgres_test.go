package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"yolodetect/internal/dto"
	"yolodetect/internal/model"
)

// setupTestDB starts a throwaway PostgreSQL container. It needs Docker.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers panics when the Docker socket is missing.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("history_test"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepositoriesIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	preds := NewPredictionRepository(db)
	dets := NewDetectionRepository(db)

	base := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	insert := func(name, source string, at time.Time, classes ...string) int64 {
		t.Helper()
		id, err := preds.Insert(ctx, &model.Prediction{
			RequestID:     "req-" + name,
			Source:        source,
			Filename:      name + ".png",
			FilePath:      "/archive/" + name + ".png",
			NumDetections: len(classes),
			CreatedAt:     at,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		var batch []model.Detection
		for i, c := range classes {
			batch = append(batch, model.Detection{PredictionID: id, ClassID: i, ClassName: c, Confidence: 0.5, X1: 1, Y1: 2, X2: 3, Y2: 4})
		}
		if err := dets.InsertBatch(ctx, batch); err != nil {
			t.Fatalf("InsertBatch failed: %v", err)
		}
		return id
	}

	first := insert("a", "http", base, "person", "dog")
	insert("b", "stream", base.Add(time.Minute), "car")
	insert("c", "http", base.Add(2*time.Minute))

	// --- Lookups ---

	p, err := preds.GetByID(ctx, first)
	if err != nil || p == nil {
		t.Fatalf("GetByID returned %+v, %v", p, err)
	}
	if p.Filename != "a.png" || !p.CreatedAt.Equal(base) {
		t.Errorf("Unexpected prediction %+v", p)
	}
	if missing, err := preds.GetByFilename(ctx, "nope.png"); err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for missing file, got %+v, %v", missing, err)
	}

	// --- Filters ---

	all, err := preds.GetAll(ctx, &dto.PredictionFilters{})
	if err != nil || len(all) != 3 || all[0].Filename != "c.png" {
		t.Fatalf("GetAll returned %+v, %v", all, err)
	}
	byClass, err := preds.GetAll(ctx, &dto.PredictionFilters{ClassName: "person"})
	if err != nil || len(byClass) != 1 || byClass[0].ID != first {
		t.Errorf("Class filter returned %+v, %v", byClass, err)
	}
	paged, err := preds.GetAll(ctx, &dto.PredictionFilters{Source: "http", Limit: 1, Offset: 1})
	if err != nil || len(paged) != 1 || paged[0].Filename != "a.png" {
		t.Errorf("Paged filter returned %+v, %v", paged, err)
	}
	if count, err := preds.GetTotalCount(ctx, &dto.PredictionFilters{Source: "http"}); err != nil || count != 2 {
		t.Errorf("Expected 2 http predictions, got %d, %v", count, err)
	}

	// --- Detections ---

	names, err := dets.GetClassNamesByPredictionID(ctx, first)
	if err != nil || len(names) != 2 || names[0] != "dog" {
		t.Errorf("Unexpected class names %v, %v", names, err)
	}
	classes, err := dets.GetAllClassNames(ctx)
	if err != nil || len(classes) != 3 {
		t.Errorf("Unexpected classes %v, %v", classes, err)
	}

	// --- Atomic insert ---

	txID, err := preds.InsertWithDetections(ctx, &model.Prediction{
		RequestID: "req-d", Source: "http", Filename: "d.png", FilePath: "/archive/d.png", NumDetections: 1, CreatedAt: base,
	}, []model.Detection{{ClassName: "bird", Confidence: 0.4, X1: 1, Y1: 1, X2: 2, Y2: 2}})
	if err != nil {
		t.Fatalf("InsertWithDetections failed: %v", err)
	}
	if got, err := dets.GetByPredictionID(ctx, txID); err != nil || len(got) != 1 {
		t.Errorf("Expected 1 detection for %d, got %+v, %v", txID, got, err)
	}

	_, err = preds.InsertWithDetections(ctx, &model.Prediction{
		RequestID: "req-e", Source: "http", Filename: "e.png", FilePath: "/archive/e.png", NumDetections: 1, CreatedAt: base,
	}, []model.Detection{{ClassName: "bird", Confidence: 2}})
	if err == nil {
		t.Error("Expected error for a detection outside the confidence range")
	}
	if left, err := preds.GetByFilename(ctx, "e.png"); err != nil || left != nil {
		t.Errorf("Prediction row survived a failed detection insert: %+v, %v", left, err)
	}

	// --- Clear ---

	if err := preds.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if left, _ := dets.GetByPredictionID(ctx, first); len(left) != 0 {
		t.Errorf("Expected detections removed, got %d", len(left))
	}
}
