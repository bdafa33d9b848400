package classifier

import (
	"context"
	"errors"

	"github.com/crimson-sun/warden/internal/model"
)

// Verdict is a classifier's raw opinion about one text. RawCategory is in
// the implementation's own vocabulary; normalization happens downstream.
type Verdict struct {
	RawCategory string
	Confidence  float64
	Rationale   string
}

// Classifier is the capability every content-safety signal implements.
// Classify must honor ctx cancellation and must not observe side effects
// beyond the returned verdict and its latency. Failures are reported as
// *model.ClassifierError.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (Verdict, error)
}

// WrapError converts a transport or context error into a ClassifierError
// with the right kind. Adapters raise ErrInvalidResponse themselves when a
// reply parses to nothing usable.
func WrapError(name string, err error) error {
	var cerr *model.ClassifierError
	if errors.As(err, &cerr) {
		return err
	}
	kind := model.ErrUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = model.ErrTimeout
	}
	return &model.ClassifierError{Classifier: name, Kind: kind, Err: err}
}
