package model

import "time"

// ResultStatus describes how a single classifier call ended.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusTimeout   ResultStatus = "timeout"
	StatusError     ResultStatus = "error"
)

// ClassifierResult is one classifier's contribution to a decision.
// Category is always a key of the active taxonomy; when the call failed,
// it is the configured fallback category and Fallback is true.
type ClassifierResult struct {
	Classifier  string // stable reporting identifier
	RawCategory string // label as emitted by the model
	Category    string // unified taxonomy key
	Severity    int
	Confidence  float64
	Rationale   string
	Elapsed     time.Duration
	Status      ResultStatus
	Fallback    bool
}

// ScreenResult is the outcome of the pattern pre-screen.
type ScreenResult struct {
	Matched bool
	Matches []string
	Elapsed time.Duration
}
