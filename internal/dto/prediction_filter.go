package dto

// PredictionFilters describe user-provided filters to narrow the history list.
type PredictionFilters struct {
	Source    string
	ClassName string
	Limit     int
	Offset    int
}
