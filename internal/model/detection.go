package model

// Detection represents one stored detection of an archived prediction.
type Detection struct {
	ID           int64   `json:"id"`
	PredictionID int64   `json:"prediction_id"`
	ClassID      int     `json:"class_id"`
	ClassName    string  `json:"class_name"`
	Confidence   float64 `json:"confidence"`
	X1           float64 `json:"x1"`
	Y1           float64 `json:"y1"`
	X2           float64 `json:"x2"`
	Y2           float64 `json:"y2"`
}
