package providers

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// streamBufferSize is the largest chunk handed out by a single Next call.
const streamBufferSize = 32 << 10

// Stream is a single-pass cursor over an upstream event stream.
//
// The upstream connection is released exactly once: when the stream is
// exhausted, when Next fails, when the context passed to Next is cancelled,
// or when Close is called, whichever happens first. Consumers must either
// read until io.EOF or call Close; deferring Close is always safe.
//
// Next must not be called concurrently. Close may be called from any
// goroutine.
type Stream struct {
	provider string
	body     io.ReadCloser
	buf      []byte
	pending  error

	// cancel releases the per-call timeout context
	cancel  context.CancelFunc
	onClose func()
	logger  *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	exhausted bool
}

func newStream(provider string, body io.ReadCloser, cancel context.CancelFunc, onClose func(), logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		provider: provider,
		body:     body,
		buf:      make([]byte, streamBufferSize),
		cancel:   cancel,
		onClose:  onClose,
		logger:   logger,
	}
}

// Provider returns the provider serving the stream.
func (s *Stream) Provider() string {
	return s.provider
}

// Next returns the next chunk of raw event-stream bytes. It returns io.EOF
// once the upstream finishes or the stream was closed, ctx.Err() if ctx is
// cancelled, and a *Error for upstream failures. Any non-nil error leaves the
// stream closed.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	if s.exhausted {
		return nil, io.EOF
	}
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return nil, s.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, s.abort(err)
	}
	if s.closed.Load() {
		s.exhausted = true
		return nil, io.EOF
	}

	// Closing the body unblocks a pending Read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	n, err := s.body.Read(s.buf)
	if !stop() {
		return nil, s.abort(ctx.Err())
	}

	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		if err != nil {
			s.pending = err
		}
		return chunk, nil
	}
	if err == nil {
		return s.Next(ctx)
	}
	return nil, s.fail(err)
}

// abort closes the stream on caller cancellation and passes the signal on.
func (s *Stream) abort(err error) error {
	_ = s.Close()
	s.exhausted = true
	s.logger.Debug("stream cancelled by consumer", "error", err)
	return err
}

// fail closes the stream after a read error. A clean end of stream and a
// read interrupted by Close both report io.EOF.
func (s *Stream) fail(err error) error {
	closedElsewhere := s.closed.Load()
	_ = s.Close()
	s.exhausted = true

	if errors.Is(err, io.EOF) || closedElsewhere {
		return io.EOF
	}
	s.logger.Warn("stream terminated with error", "error", err)
	return NewTransportError(s.provider, err)
}

// Close releases the upstream connection. It is idempotent.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
		if s.cancel != nil {
			s.cancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("stream released")
	})
	return err
}

// Chunks adapts the stream to a range-over-func sequence. The stream is
// closed when the loop ends for any reason, including break. A cancelled ctx
// is yielded as its error before the sequence ends.
func (s *Stream) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
