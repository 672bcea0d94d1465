package core

import "time"

// ValidationCheck is the outcome of one self-test step
type ValidationCheck struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Severity Severity    `json:"severity"`
}

// ValidationSummary counts check outcomes
type ValidationSummary struct {
	Total            int `json:"total"`
	Passed           int `json:"passed"`
	Failed           int `json:"failed"`
	Warnings         int `json:"warnings"`
	CriticalFailures int `json:"critical_failures"`
}

// ValidationResult is the structured outcome of a self-test run
type ValidationResult struct {
	Timestamp time.Time         `json:"timestamp"`
	Overall   OverallStatus     `json:"overall"`
	Score     int               `json:"score"`
	Checks    []ValidationCheck `json:"checks"`
	Summary   ValidationSummary `json:"summary"`
}

// Passed reports whether the run's overall status is pass
func (r *ValidationResult) Passed() bool {
	return r.Overall == OverallPass
}
