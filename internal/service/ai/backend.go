package ai

import (
	"image"

	"yolodetect/internal/service/ai/yolo"
)

// Backend runs the network on one image and returns the raw detection head.
// A Backend is used by one request at a time.
type Backend interface {
	Infer(img image.Image) (yolo.Tensor, error)
	Close() error
}

// BackendOptions is what every backend needs to load the model.
type BackendOptions struct {
	ModelPath  string
	InputSize  int
	NumClasses int
	Device     string
	LibPath    string // shared library, onnxruntime only
}

// BackendFactory loads one model instance.
type BackendFactory func(opts BackendOptions) (Backend, error)
