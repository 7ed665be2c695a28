package models

// MetricResult is the score and findings for one evaluation metric.
type MetricResult struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// EvaluationResult is a scored comparison of produced settlement records
// against a human-labeled expected set. Computed once, never mutated.
type EvaluationResult struct {
	Score   float64                 `json:"overall_score"`
	Grade   string                  `json:"grade"`
	Metrics map[string]MetricResult `json:"detailed_metrics"`
	Issues  []string                `json:"issues"`

	// Passed is a convenience flag set at Score >= 0.70.
	Passed bool `json:"evaluation_passed"`
}
