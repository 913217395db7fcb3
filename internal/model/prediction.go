package model

import "time"

// Prediction represents an archived prediction record.
type Prediction struct {
	ID            int64     `json:"id"`
	RequestID     string    `json:"request_id"`
	Source        string    `json:"source"`
	Filename      string    `json:"filename"`
	FilePath      string    `json:"filepath"`
	FileSize      int64     `json:"filesize"`
	ImageWidth    int       `json:"image_width"`
	ImageHeight   int       `json:"image_height"`
	NumDetections int       `json:"num_detections"`
	CreatedAt     time.Time `json:"created_at"`
}
