package dto

import (
	"image"
	"time"
)

// ArchivedPrediction holds a decoded image and its result before flushing to disk.
type ArchivedPrediction struct {
	RequestID string
	Source    string
	Timestamp time.Time
	Image     image.Image
	Result    DetectionResult
}
