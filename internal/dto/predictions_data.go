package dto

import (
	"encoding/json"
	"time"
)

// PredictionInfo is one row of the history list.
type PredictionInfo struct {
	ID            int64     `json:"id"`
	RequestID     string    `json:"request_id"`
	Image         string    `json:"image"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	NumDetections int       `json:"num_detections"`
	Classes       []string  `json:"classes"`
}

// MarshalJSON formats the timestamp the way the history page shows it.
func (p PredictionInfo) MarshalJSON() ([]byte, error) {
	type Alias PredictionInfo
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		Alias
	}{
		CreatedAt: p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		Alias:     (Alias)(p),
	})
}

// PredictionsData is a paginated response payload for the history list.
type PredictionsData struct {
	Predictions []PredictionInfo `json:"predictions"`
	Classes     []string         `json:"classes"`
	Length      int              `json:"length"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"pageSize"`
}

// PredictionDetail is one archived prediction with its stored result.
type PredictionDetail struct {
	Prediction PredictionInfo  `json:"prediction"`
	Result     DetectionResult `json:"result"`
}
