package model

import "fmt"

// ValidationError rejects malformed input at the front of the pipeline.
// It is the only per-request error surfaced to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// ClassifierErrorKind distinguishes the ways a classifier call can fail.
type ClassifierErrorKind string

const (
	ErrTimeout         ClassifierErrorKind = "timeout"
	ErrUnavailable     ClassifierErrorKind = "unavailable"
	ErrInvalidResponse ClassifierErrorKind = "invalid_response"
)

// ClassifierError wraps a failed classifier call. The dispatcher recovers
// it locally by substituting a fallback result; it never aborts a request.
type ClassifierError struct {
	Classifier string
	Kind       ClassifierErrorKind
	Err        error
}

func (e *ClassifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier %s: %s: %v", e.Classifier, e.Kind, e.Err)
	}
	return fmt.Sprintf("classifier %s: %s", e.Classifier, e.Kind)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid configuration. It can only occur
// at load or reload time, never mid-request.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}
