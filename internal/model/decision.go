package model

import "time"

// ConfidenceLevel is the discrete confidence bucket attached to a decision.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// SourceVerdict is one row of the per-source breakdown: what a single
// signal (the pre-screen or one classifier) said about the text.
type SourceVerdict struct {
	Source      string        `json:"source"`
	RawCategory string        `json:"raw_category,omitempty"`
	Category    string        `json:"category"`
	Severity    int           `json:"severity"`
	Confidence  float64       `json:"confidence"`
	Rationale   string        `json:"rationale,omitempty"`
	Status      ResultStatus  `json:"status"`
	Fallback    bool          `json:"fallback,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Timings records where a request spent its time.
type Timings struct {
	Screen   time.Duration `json:"screen_ns"`
	Dispatch time.Duration `json:"dispatch_ns"`
	Resolve  time.Duration `json:"resolve_ns"`
	Total    time.Duration `json:"total_ns"`
}

// Decision is the final output of the engine for one request.
// IsSafe holds exactly when the final category has severity zero.
type Decision struct {
	RequestID      string          `json:"request_id,omitempty"`
	IsSafe         bool            `json:"is_safe"`
	Category       string          `json:"category"`
	Severity       int             `json:"severity"`
	Confidence     ConfidenceLevel `json:"confidence"`
	Reason         string          `json:"reason"`
	Consensus      bool            `json:"consensus"`
	Method         string          `json:"method"` // resolution method actually applied
	ShortCircuited bool            `json:"short_circuited,omitempty"`
	Sources        []SourceVerdict `json:"sources,omitempty"`
	Timings        Timings         `json:"timings"`
}
