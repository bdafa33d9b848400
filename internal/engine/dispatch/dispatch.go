// Package dispatch fans one text out to every enabled classifier
// concurrently and collects exactly one result per classifier. A call that
// fails or overruns its own deadline is replaced by a fallback result; it
// never aborts the batch, so total wall-clock time is bounded by the
// largest single timeout rather than the sum.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/engine/taxonomy"
	"github.com/crimson-sun/warden/internal/model"
)

// Entry pairs a classifier with its per-call budget and label normalizer.
type Entry struct {
	Classifier classifier.Classifier
	Timeout    time.Duration
	Normalizer *taxonomy.Normalizer
}

// Pool dispatches classification work. Fallback is the unified category
// substituted when a call fails; with fail-closed policy it is an unsafe
// bucket.
type Pool struct {
	tax      *taxonomy.Taxonomy
	fallback string
}

// New creates a Pool substituting the given unified category for failures.
func New(tax *taxonomy.Taxonomy, fallback string) (*Pool, error) {
	if _, ok := tax.Lookup(fallback); !ok {
		return nil, &model.ConfigurationError{Field: "fallback_category", Reason: "category " + fallback + " not defined"}
	}
	return &Pool{tax: tax, fallback: fallback}, nil
}

// Dispatch runs every entry in parallel under its own deadline and returns
// one result per entry, in entry order. It never returns before all calls
// completed or individually timed out.
func (p *Pool) Dispatch(ctx context.Context, entries []Entry, text string) []model.ClassifierResult {
	if len(entries) == 0 {
		return nil
	}

	results := make([]model.ClassifierResult, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			results[i] = p.invoke(ctx, e, text)
			return nil
		})
	}
	g.Wait()
	return results
}

func (p *Pool) invoke(ctx context.Context, e Entry, text string) model.ClassifierResult {
	name := e.Classifier.Name()
	start := time.Now()

	cctx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	verdict, err := e.Classifier.Classify(cctx, text)
	elapsed := time.Since(start)
	if err != nil {
		return p.fallbackResult(name, err, elapsed)
	}

	unified, known := e.Normalizer.Normalize(verdict.RawCategory)
	if !known {
		slog.Debug("unmapped raw category", "classifier", name, "raw", verdict.RawCategory, "resolved", unified)
	}
	return model.ClassifierResult{
		Classifier:  name,
		RawCategory: verdict.RawCategory,
		Category:    unified,
		Severity:    p.tax.Severity(unified),
		Confidence:  verdict.Confidence,
		Rationale:   verdict.Rationale,
		Elapsed:     elapsed,
		Status:      model.StatusCompleted,
	}
}

// fallbackResult synthesizes the substitute for a failed call.
func (p *Pool) fallbackResult(name string, err error, elapsed time.Duration) model.ClassifierResult {
	status := model.StatusError
	var cerr *model.ClassifierError
	if errors.As(err, &cerr) && cerr.Kind == model.ErrTimeout {
		status = model.StatusTimeout
	}
	slog.Warn("classifier failed, substituting fallback", "classifier", name, "status", string(status), "error", err)

	return model.ClassifierResult{
		Classifier:  name,
		RawCategory: string(status),
		Category:    p.fallback,
		Severity:    p.tax.Severity(p.fallback),
		Confidence:  0,
		Rationale:   "classifier " + string(status) + "; fallback category substituted",
		Elapsed:     elapsed,
		Status:      status,
		Fallback:    true,
	}
}
