// Package gocvnet runs the detector on OpenCV's DNN module.
package gocvnet

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"yolodetect/internal/service/ai"
	"yolodetect/internal/service/ai/yolo"
)

// Backend wraps one gocv.Net. gocv.Net is not safe for concurrent use; the
// detector pool hands each instance to one request at a time.
type Backend struct {
	net        gocv.Net
	inputSize  int
	numClasses int
}

// Open loads an ONNX export and selects the CPU or CUDA target.
func Open(opts ai.BackendOptions) (ai.Backend, error) {
	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", opts.ModelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if opts.Device == "cuda" {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Backend{
		net:        net,
		inputSize:  opts.InputSize,
		numClasses: opts.NumClasses,
	}, nil
}

// Infer resizes img to the square network input and runs a forward pass.
func (b *Backend) Infer(img image.Image) (yolo.Tensor, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return yolo.Tensor{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return yolo.Tensor{}, fmt.Errorf("converted image is empty")
	}

	// ImageToMatRGB already yields BGR order, so swapRB turns it back into RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(b.inputSize, b.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")

	output := b.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return yolo.Tensor{}, fmt.Errorf("failed to read network output: %w", err)
	}

	// The output Mat owns data; copy before it is closed.
	values := make([]float32, len(data))
	copy(values, data)

	return yolo.NewTensor(values, b.numClasses, output.Size())
}

// Close releases the network.
func (b *Backend) Close() error {
	return b.net.Close()
}
