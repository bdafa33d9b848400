package model

import "time"

// CheckRequest is the input to one decision episode. It is created at the
// service edge and never mutated afterwards.
type CheckRequest struct {
	ID       string
	Text     string
	Client   string            // caller-supplied client identifier
	Metadata map[string]string // edge metadata (user agent, remote addr, ...)
	Received time.Time
}
