package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/warden/internal/audit"
)

// Multi fans out audit records to multiple sinks. Each Write call delivers
// the record to every wrapped sink sequentially. If one sink fails, the
// remaining sinks still receive the record.
type Multi struct {
	sinks []audit.Sink
}

// New creates a Multi that fans out to the given sinks.
func New(sinks ...audit.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Write delivers the record to every wrapped sink. Errors are collected
// but do not prevent delivery to subsequent sinks.
func (m *Multi) Write(ctx context.Context, rec audit.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
