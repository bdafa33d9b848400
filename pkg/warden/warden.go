package warden

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/warden/internal/engine"
	"github.com/crimson-sun/warden/internal/engine/screen"
	"github.com/crimson-sun/warden/internal/model"

	// Register the built-in classifier adapters.
	_ "github.com/crimson-sun/warden/internal/classifier/guardian"
	_ "github.com/crimson-sun/warden/internal/classifier/judge"
	_ "github.com/crimson-sun/warden/internal/classifier/llamaguard"
)

// Warden is a content-safety decision engine. Safe for concurrent use.
type Warden struct {
	engine *engine.Engine
}

// New creates a Warden instance. All configuration errors surface here,
// never mid-request.
func New(opts ...Option) (*Warden, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	eng, err := engine.New(o.cfg)
	if err != nil {
		return nil, fmt.Errorf("warden: %w", err)
	}
	if o.blSet {
		bl := screen.Blocklist{Keywords: o.keywords, Patterns: o.patterns}
		if err := eng.UpdateBlocklist(bl); err != nil {
			return nil, fmt.Errorf("warden: %w", err)
		}
	}
	return &Warden{engine: eng}, nil
}

// Check decides whether text is safe to pass on.
func (w *Warden) Check(ctx context.Context, text string) (Decision, error) {
	return w.CheckRequest(ctx, Request{Text: text})
}

// CheckRequest decides a request carrying client identity and metadata.
func (w *Warden) CheckRequest(ctx context.Context, req Request) (Decision, error) {
	d, err := w.engine.Check(ctx, model.CheckRequest{
		ID:       uuid.NewString(),
		Text:     req.Text,
		Client:   req.Client,
		Metadata: req.Metadata,
		Received: time.Now(),
	})
	if err != nil {
		return Decision{}, err
	}
	return decisionFromModel(d), nil
}

// UpdateBlocklist swaps the pre-screen vocabulary atomically.
func (w *Warden) UpdateBlocklist(keywords, patterns []string) error {
	return w.engine.UpdateBlocklist(screen.Blocklist{Keywords: keywords, Patterns: patterns})
}

// Blocklist returns the active pre-screen vocabulary.
func (w *Warden) Blocklist() (keywords, patterns []string) {
	bl := w.engine.Blocklist()
	return bl.Keywords, bl.Patterns
}

// decisionFromModel converts the internal decision to the public type.
func decisionFromModel(d model.Decision) Decision {
	out := Decision{
		RequestID:      d.RequestID,
		IsSafe:         d.IsSafe,
		Category:       d.Category,
		Severity:       d.Severity,
		Confidence:     string(d.Confidence),
		Reason:         d.Reason,
		Consensus:      d.Consensus,
		ShortCircuited: d.ShortCircuited,
		Elapsed:        d.Timings.Total,
	}
	for _, s := range d.Sources {
		out.Sources = append(out.Sources, Source{
			Name:       s.Source,
			Category:   s.Category,
			Severity:   s.Severity,
			Confidence: s.Confidence,
			Failed:     s.Fallback,
		})
	}
	return out
}
