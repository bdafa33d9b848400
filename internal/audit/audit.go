// Package audit defines the decision audit trail: one Record per checked
// request, written to a configurable Sink. Request text is PII-redacted
// before it reaches any sink, so audit destinations never see raw
// identifiers.
package audit

import (
	"context"
	"time"

	"github.com/crimson-sun/warden/internal/model"
	"github.com/crimson-sun/warden/internal/redact"
)

// Record is one audit trail entry.
type Record struct {
	Time           time.Time             `json:"time"`
	RequestID      string                `json:"request_id,omitempty"`
	Client         string                `json:"client,omitempty"`
	Text           string                `json:"text,omitempty"`
	IsSafe         bool                  `json:"is_safe"`
	Category       string                `json:"category"`
	Severity       int                   `json:"severity"`
	Confidence     string                `json:"confidence"`
	Reason         string                `json:"reason"`
	Consensus      bool                  `json:"consensus"`
	Method         string                `json:"method"`
	ShortCircuited bool                  `json:"short_circuited,omitempty"`
	Sources        []model.SourceVerdict `json:"sources,omitempty"`
	TotalMS        int64                 `json:"total_ms"`
}

// Sink is a destination for audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Recorder turns decisions into records and hands them to a sink,
// optionally masking PII in the request text first.
type Recorder struct {
	sink   Sink
	masker *redact.Masker
}

// NewRecorder wraps sink. When redactPII is true, request text is masked
// before writing.
func NewRecorder(sink Sink, redactPII bool) *Recorder {
	r := &Recorder{sink: sink}
	if redactPII {
		r.masker = redact.New()
	}
	return r
}

// Record writes one audit entry for a completed decision.
func (r *Recorder) Record(ctx context.Context, req model.CheckRequest, d model.Decision) error {
	rec := FromDecision(req, d)
	if r.masker != nil {
		rec.Text = r.masker.Mask(rec.Text)
	}
	return r.sink.Write(ctx, rec)
}

// Close closes the underlying sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}

// FromDecision builds the audit record for one request/decision pair.
func FromDecision(req model.CheckRequest, d model.Decision) Record {
	return Record{
		Time:           time.Now().UTC(),
		RequestID:      d.RequestID,
		Client:         req.Client,
		Text:           req.Text,
		IsSafe:         d.IsSafe,
		Category:       d.Category,
		Severity:       d.Severity,
		Confidence:     string(d.Confidence),
		Reason:         d.Reason,
		Consensus:      d.Consensus,
		Method:         d.Method,
		ShortCircuited: d.ShortCircuited,
		Sources:        d.Sources,
		TotalMS:        d.Timings.Total.Milliseconds(),
	}
}

// Nop is a sink that discards every record.
type Nop struct{}

func (Nop) Write(context.Context, Record) error { return nil }
func (Nop) Close() error                        { return nil }
