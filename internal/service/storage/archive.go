package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"yolodetect/internal/config"
	"yolodetect/internal/dto"
	"yolodetect/internal/logger"
	"yolodetect/internal/model"
	"yolodetect/internal/overlay"
	"yolodetect/internal/repository"
)

// TimestampLayout is the timestamp part of archive file names.
const TimestampLayout = "20060102-150405.000"

// ArchiveService buffers predictions in memory and periodically writes them
// to disk as annotated PNGs with JSON sidecars.
type ArchiveService struct {
	dir         string
	bufferLimit int
	flushEvery  time.Duration
	items       []dto.ArchivedPrediction
	bufferCount map[string]int
	mu          sync.Mutex
	logger      *logger.Logger

	predictionRepo repository.PredictionRepository
}

// NewArchiveService creates an archive writing to cfg.ArchiveDirectory. store
// may be nil, in which case only files are written.
func NewArchiveService(cfg *config.Config, logger *logger.Logger, store *repository.Store) *ArchiveService {
	s := &ArchiveService{
		dir:         cfg.ArchiveDirectory,
		bufferLimit: cfg.ArchiveBufferSize,
		flushEvery:  time.Duration(cfg.ArchiveFlushEvery) * time.Second,
		items:       make([]dto.ArchivedPrediction, 0),
		bufferCount: make(map[string]int),
		logger:      logger,
	}
	if s.bufferLimit <= 0 {
		s.bufferLimit = 10
	}
	if s.flushEvery <= 0 {
		s.flushEvery = 30 * time.Second
	}
	if store != nil {
		s.predictionRepo = store.Predictions
	}
	return s
}

// Dir is the archive directory.
func (s *ArchiveService) Dir() string {
	return s.dir
}

// Run flushes on every tick until ctx ends, then flushes what is left.
func (s *ArchiveService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush(ctx)
		case <-ctx.Done():
			s.Flush(context.Background())
			return
		}
	}
}

// Add buffers a prediction. Once a source has bufferLimit pending entries
// further ones are dropped until the next flush.
func (s *ArchiveService) Add(p dto.ArchivedPrediction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[p.Source] >= s.bufferLimit {
		s.logger.Warning("Archive buffer full for source %s, dropping %s", p.Source, p.RequestID)
		return false
	}
	s.items = append(s.items, p)
	s.bufferCount[p.Source]++
	return true
}

// Pending returns how many predictions wait for the next flush.
func (s *ArchiveService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Flush writes buffered predictions and resets the buffer and per-source counters.
func (s *ArchiveService) Flush(ctx context.Context) int {
	s.mu.Lock()
	items := s.items
	s.items = make([]dto.ArchivedPrediction, 0, len(items))
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(items) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating archive directory: %v", err)
		return 0
	}

	saved := 0
	for _, item := range items {
		if err := s.save(ctx, item); err != nil {
			s.logger.Error("Error archiving prediction %s: %v", item.RequestID, err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d prediction(s) to %s", saved, s.dir)
	return saved
}

func (s *ArchiveService) save(ctx context.Context, item dto.ArchivedPrediction) error {
	name := FileBase(item.Timestamp, item.Source, item.RequestID)
	imagePath := filepath.Join(s.dir, name+".png")

	png, err := overlay.EncodePNG(item.Image, item.Result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(imagePath, png, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	sidecar, err := json.Marshal(item.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name+".json"), sidecar, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}

	if s.predictionRepo == nil {
		return nil
	}
	return Index(ctx, s.predictionRepo, &model.Prediction{
		RequestID:     item.RequestID,
		Source:        item.Source,
		Filename:      name + ".png",
		FilePath:      imagePath,
		FileSize:      int64(len(png)),
		ImageWidth:    item.Result.ImageWidth,
		ImageHeight:   item.Result.ImageHeight,
		NumDetections: item.Result.NumDetections,
		CreatedAt:     item.Timestamp,
	}, item.Result)
}

// Index stores one archived prediction and its detections in a single
// transaction, so a failure leaves no partial row behind.
func Index(ctx context.Context, predictions repository.PredictionRepository, p *model.Prediction, result dto.DetectionResult) error {
	rows := make([]model.Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		rows = append(rows, model.Detection{
			ClassID:      d.ClassID,
			ClassName:    d.ClassName,
			Confidence:   d.Confidence,
			X1:           d.Box[0],
			Y1:           d.Box[1],
			X2:           d.Box[2],
			Y2:           d.Box[3],
		})
	}
	_, err := predictions.InsertWithDetections(ctx, p, rows)
	return err
}

// FileBase names an archive entry "<timestamp>_<source>_<request id>".
func FileBase(ts time.Time, source, requestID string) string {
	return fmt.Sprintf("%s_%s_%s", ts.UTC().Format(TimestampLayout), sanitize(source), sanitize(requestID))
}

// ParseFileBase splits a name produced by FileBase. A trailing ".png" or
// ".json" is ignored. The timestamp's milliseconds contain a dot, so other
// extensions are not stripped.
func ParseFileBase(name string) (ts time.Time, source, requestID string, err error) {
	for _, ext := range []string{".png", ".json"} {
		name = strings.TrimSuffix(name, ext)
	}
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return time.Time{}, "", "", fmt.Errorf("invalid archive name %q", name)
	}
	ts, err = time.Parse(TimestampLayout, parts[0])
	if err != nil {
		return time.Time{}, "", "", fmt.Errorf("invalid timestamp in %q: %w", name, err)
	}
	return ts, parts[1], parts[2], nil
}

// sanitize keeps names safe for file systems and free of the "_" separator.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
