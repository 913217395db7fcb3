package dto

// Detection is one predicted object in a submitted image.
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2 in image pixels
}

// DetectionResult is the /predict response body.
type DetectionResult struct {
	ImageWidth    int         `json:"image_width"`
	ImageHeight   int         `json:"image_height"`
	NumDetections int         `json:"num_detections"`
	Detections    []Detection `json:"detections"`
}

// NewDetectionResult keeps NumDetections in step with Detections and never
// leaves Detections nil, so an empty result encodes as [].
func NewDetectionResult(width, height int, detections []Detection) DetectionResult {
	if detections == nil {
		detections = []Detection{}
	}
	return DetectionResult{
		ImageWidth:    width,
		ImageHeight:   height,
		NumDetections: len(detections),
		Detections:    detections,
	}
}

// Classes returns the distinct class names in detection order.
func (r DetectionResult) Classes() []string {
	seen := make(map[string]bool, len(r.Detections))
	classes := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		if !seen[d.ClassName] {
			seen[d.ClassName] = true
			classes = append(classes, d.ClassName)
		}
	}
	return classes
}
