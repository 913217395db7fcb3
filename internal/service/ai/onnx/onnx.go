// Package onnx runs the detector on ONNX Runtime.
package onnx

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"yolodetect/internal/service/ai"
	"yolodetect/internal/service/ai/yolo"
)

const (
	inputName  = "images"
	outputName = "output0"
)

var (
	envOnce sync.Once
	envErr  error
)

// Backend is one ONNX Runtime session with preallocated input/output tensors.
type Backend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	classes int
}

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath = defaultLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

func defaultLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// Open creates a session for a YOLOv8 export with input "images" [1,3,S,S]
// and output "output0" [1,4+C,N].
func Open(opts ai.BackendOptions) (ai.Backend, error) {
	if err := initEnvironment(opts.LibPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	size := opts.InputSize
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), make([]float32, 3*size*size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+opts.NumClasses), int64(yolo.AnchorCount(size))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.Device == "cuda" {
		cuda, err := ort.NewCUDAProviderOptions()
		if err == nil {
			defer cuda.Destroy()
			err = options.AppendExecutionProviderCUDA(cuda)
		}
		if err != nil {
			input.Destroy()
			output.Destroy()
			return nil, fmt.Errorf("failed to enable CUDA: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Backend{
		session: session,
		input:   input,
		output:  output,
		size:    size,
		classes: opts.NumClasses,
	}, nil
}

// Infer fills the input tensor and runs the session.
func (b *Backend) Infer(img image.Image) (yolo.Tensor, error) {
	fillInput(b.input.GetData(), img, b.size)

	if err := b.session.Run(); err != nil {
		return yolo.Tensor{}, fmt.Errorf("session run failed: %w", err)
	}

	out := b.output.GetData()
	values := make([]float32, len(out))
	copy(values, out)

	shape := b.output.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return yolo.NewTensor(values, b.classes, dims)
}

// fillInput writes img, stretched to size x size, as normalized CHW RGB.
func fillInput(dst []float32, img image.Image, size int) {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()
	stride := size * size

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			dst[idx] = float32(r>>8) / 255.0
			dst[idx+stride] = float32(g>>8) / 255.0
			dst[idx+2*stride] = float32(b>>8) / 255.0
			idx++
		}
	}
}

// Close releases the session and its tensors.
func (b *Backend) Close() error {
	err := b.session.Destroy()
	b.input.Destroy()
	b.output.Destroy()
	return err
}
