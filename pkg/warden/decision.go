package warden

import "time"

// Request is one piece of content to check, with optional caller identity.
type Request struct {
	Text     string
	Client   string
	Metadata map[string]string
}

// Source is one contributing signal in a decision's breakdown.
type Source struct {
	Name       string
	Category   string
	Severity   int
	Confidence float64
	Failed     bool // a fallback verdict was substituted for this source
}

// Decision is the outcome of checking one piece of content.
type Decision struct {
	RequestID      string
	IsSafe         bool
	Category       string
	Severity       int
	Confidence     string // "high", "medium", "low"
	Reason         string
	Consensus      bool
	ShortCircuited bool
	Sources        []Source
	Elapsed        time.Duration
}
