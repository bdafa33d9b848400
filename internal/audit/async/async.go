package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/crimson-sun/warden/internal/audit"
)

const defaultBuffer = 256

// Sink decouples audit writes from the request path: records are queued
// on a buffered channel and drained by a single background worker. When
// the queue is full, the record is dropped and counted rather than
// blocking a request.
type Sink struct {
	inner   audit.Sink
	ch      chan audit.Record
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// New wraps inner with an asynchronous queue. buffer <= 0 uses the default.
func New(inner audit.Sink, buffer int) *Sink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &Sink{
		inner: inner,
		ch:    make(chan audit.Record, buffer),
		done:  make(chan struct{}),
	}
	go s.drain()
	return s
}

// Write enqueues the record. It never blocks: when the queue is full the
// record is dropped with a warning.
func (s *Sink) Write(_ context.Context, rec audit.Record) error {
	select {
	case s.ch <- rec:
		return nil
	default:
		n := s.dropped.Add(1)
		slog.Warn("audit queue full, record dropped", "dropped_total", n)
		return nil
	}
}

// Dropped reports how many records have been discarded due to a full queue.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting records, waits for the queue to drain, and closes
// the inner sink.
func (s *Sink) Close() error {
	s.once.Do(func() { close(s.ch) })
	<-s.done
	return s.inner.Close()
}

func (s *Sink) drain() {
	defer close(s.done)
	for rec := range s.ch {
		if err := s.inner.Write(context.Background(), rec); err != nil {
			slog.Warn("audit write failed", "error", err)
		}
	}
}
