// Package yolo decodes YOLOv8 detection heads into pixel-space detections.
//
// The network emits one tensor of shape [1, 4+C, N]: for each of the N anchors
// a center/size box (cx, cy, w, h) in network-input pixels followed by C class
// scores. There is no separate objectness column.
package yolo

import (
	"fmt"
	"math"
	"sort"

	"yolodetect/internal/dto"
)

// Tensor is a channel-major [Channels][Anchors] view of the raw output.
type Tensor struct {
	Data     []float32
	Channels int
	Anchors  int
}

// NewTensor validates the output shape against the number of classes.
func NewTensor(data []float32, numClasses int, shape []int) (Tensor, error) {
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return Tensor{}, fmt.Errorf("unexpected output shape %v", shape)
	}
	channels, anchors := shape[0], shape[1]
	if channels != numClasses+4 {
		return Tensor{}, fmt.Errorf("output has %d channels, expected %d (4 box + %d classes)", channels, numClasses+4, numClasses)
	}
	if len(data) < channels*anchors {
		return Tensor{}, fmt.Errorf("output has %d values, expected %d", len(data), channels*anchors)
	}
	return Tensor{Data: data, Channels: channels, Anchors: anchors}, nil
}

func (t Tensor) at(channel, anchor int) float32 {
	return t.Data[channel*t.Anchors+anchor]
}

// Options controls post-processing.
type Options struct {
	InputSize     int // square network input, in pixels
	ImageWidth    int
	ImageHeight   int
	ConfThreshold float64
	IoUThreshold  float64
	MaxDetections int
	Labels        []string
}

type candidate struct {
	classID    int
	confidence float64
	x1, y1     float64
	x2, y2     float64
}

// Decode turns the raw tensor into sorted, suppressed detections.
func Decode(t Tensor, opts Options) []dto.Detection {
	numClasses := t.Channels - 4
	sx := float64(opts.ImageWidth) / float64(opts.InputSize)
	sy := float64(opts.ImageHeight) / float64(opts.InputSize)

	var candidates []candidate
	for i := 0; i < t.Anchors; i++ {
		classID, score := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			if v := t.at(4+c, i); v > score {
				score, classID = v, c
			}
		}
		conf := clamp(float64(score), 0, 1)
		if conf < opts.ConfThreshold || conf == 0 {
			continue
		}

		cx, cy := float64(t.at(0, i)), float64(t.at(1, i))
		w, h := float64(t.at(2, i)), float64(t.at(3, i))

		c := candidate{
			classID:    classID,
			confidence: conf,
			x1:         clamp((cx-w/2)*sx, 0, float64(opts.ImageWidth)),
			y1:         clamp((cy-h/2)*sy, 0, float64(opts.ImageHeight)),
			x2:         clamp((cx+w/2)*sx, 0, float64(opts.ImageWidth)),
			y2:         clamp((cy+h/2)*sy, 0, float64(opts.ImageHeight)),
		}
		if c.x2 <= c.x1 || c.y2 <= c.y1 {
			continue
		}
		candidates = append(candidates, c)
	}

	sortCandidates(candidates)
	kept := suppress(candidates, opts.IoUThreshold, opts.MaxDetections)

	detections := make([]dto.Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, dto.Detection{
			ClassID:    c.classID,
			ClassName:  Label(opts.Labels, c.classID),
			Confidence: c.confidence,
			Box:        [4]float64{c.x1, c.y1, c.x2, c.y2},
		})
	}
	return detections
}

// sortCandidates orders by confidence desc, then class id, x1, y1 ascending.
func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.classID != b.classID {
			return a.classID < b.classID
		}
		if a.x1 != b.x1 {
			return a.x1 < b.x1
		}
		return a.y1 < b.y1
	})
}

// suppress is greedy class-aware NMS over candidates already in output order.
func suppress(cs []candidate, iouThreshold float64, maxDetections int) []candidate {
	removed := make([]bool, len(cs))
	var kept []candidate

	for i := range cs {
		if removed[i] {
			continue
		}
		kept = append(kept, cs[i])
		if maxDetections > 0 && len(kept) == maxDetections {
			break
		}
		for j := i + 1; j < len(cs); j++ {
			if removed[j] || cs[j].classID != cs[i].classID {
				continue
			}
			if iou(cs[i], cs[j]) > iouThreshold {
				removed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b candidate) float64 {
	x1 := math.Max(a.x1, b.x1)
	y1 := math.Max(a.y1, b.y1)
	x2 := math.Min(a.x2, b.x2)
	y2 := math.Min(a.y2, b.y2)

	inter := math.Max(0, x2-x1) * math.Max(0, y2-y1)
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// AnchorCount is the number of anchors a YOLOv8 head produces for a square input
// (strides 8, 16 and 32).
func AnchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		n += side * side
	}
	return n
}
