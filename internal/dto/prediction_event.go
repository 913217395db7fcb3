package dto

import "time"

// PredictionEvent is broadcast to /ws/events viewers after each prediction.
type PredictionEvent struct {
	RequestID     string    `json:"request_id"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	NumDetections int       `json:"num_detections"`
	Classes       []string  `json:"classes"`
}
