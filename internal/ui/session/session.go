// Package session runs one detect-and-review cycle for the UI and CLI.
package session

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"yolodetect/internal/client"
	"yolodetect/internal/config"
	"yolodetect/internal/overlay"
	"yolodetect/internal/service/ai"
)

// Predictor is the part of client.Client a session needs.
type Predictor interface {
	Predict(ctx context.Context, filename string, data []byte) (*client.Prediction, error)
}

// Outcome is the state of one detection run. Nothing outlives the process.
type Outcome struct {
	Path       string
	Image      image.Image
	Annotated  *image.RGBA
	Prediction *client.Prediction
}

type Session struct {
	api       Predictor
	outputDir string
}

func New(api Predictor, outputDir string) *Session {
	return &Session{api: api, outputDir: outputDir}
}

// Run uploads the image at path and overlays the returned boxes on it.
// Server errors are returned unchanged so their message can be shown as is.
func (s *Session) Run(ctx context.Context, path string) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	pred, err := s.api.Predict(ctx, path, data)
	if err != nil {
		return nil, err
	}

	img, err := ai.DecodeImage(data, config.DefaultMaxImagePixels)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s for display: %w", path, err)
	}

	return &Outcome{
		Path:       path,
		Image:      img,
		Annotated:  overlay.Draw(img, pred.Result),
		Prediction: pred,
	}, nil
}

// SaveJSON writes the response body exactly as the server sent it.
func SaveJSON(o *Outcome, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, o.Prediction.Raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SaveAnnotated writes the annotated image as PNG.
func SaveAnnotated(o *Outcome, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, o.Annotated); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// JSONPath proposes a fresh detections_<uuid>.json file in the output directory.
func (s *Session) JSONPath() string {
	return filepath.Join(s.outputDir, fmt.Sprintf("detections_%s.json", uuid.NewString()))
}

// OutputPaths names the annotated image and JSON written for a source image.
func (s *Session) OutputPaths(source string) (imagePath, jsonPath string) {
	base := filepath.Base(source)
	base = base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(s.outputDir, base+"_annotated.png"), filepath.Join(s.outputDir, base+".json")
}
