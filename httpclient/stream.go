package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"sync"
)

// Stream is a lazy, single-pass sequence of NDJSON items. It owns the
// response body and closes it on exhaustion, error, cancellation or Close.
// A Stream is not safe for concurrent use.
type Stream[T any] struct {
	ctx  context.Context
	open func(context.Context) (io.ReadCloser, error)

	body   io.ReadCloser
	reader *bufio.Reader
	stop   func() bool

	item    T
	err     error
	line    int
	started bool
	done    bool

	closeOnce sync.Once
	closeErr  error
}

// StreamNDJSON returns a stream over the NDJSON body of req. No request is
// made until the first call to Next.
func StreamNDJSON[T any](ctx context.Context, t Transport, req *Request) *Stream[T] {
	return &Stream[T]{
		ctx: ctx,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return t.Open(ctx, req)
		},
	}
}

// NewStream decodes an already open NDJSON body. Canceling ctx closes body.
func NewStream[T any](ctx context.Context, body io.ReadCloser) *Stream[T] {
	s := &Stream[T]{ctx: ctx, started: true}
	s.attach(body)
	return s
}

func (s *Stream[T]) attach(body io.ReadCloser) {
	s.body = body
	s.reader = bufio.NewReader(body)
	// Unblocks a pending read when the caller cancels.
	s.stop = context.AfterFunc(s.ctx, func() { s.closeBody() })
}

// Next advances to the next item. It returns false at the end of the stream,
// on error or after cancellation; Err tells which.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.fail(err)
		return false
	}

	if !s.started {
		s.started = true
		body, err := s.open(s.ctx)
		if err != nil {
			s.fail(err)
			return false
		}
		s.attach(body)
	}

	for {
		raw, readErr := s.reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			s.fail(s.readError(readErr))
			return false
		}

		if len(raw) > 0 {
			s.line++
		}
		line := bytes.TrimSpace(raw)
		if len(line) > 0 {
			var item T
			if err := json.Unmarshal(line, &item); err != nil {
				s.fail(&DecodeError{Line: s.line, Err: err})
				return false
			}
			s.item = item
			if readErr != nil {
				// Last line had no terminating newline; finish on the next call.
				s.reader = bufio.NewReader(eofReader{})
			}
			return true
		}

		// A body closed by cancellation may report a plain EOF.
		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			return false
		}
		if readErr != nil {
			s.finish()
			return false
		}
	}
}

// Item returns the item decoded by the last successful Next.
func (s *Stream[T]) Item() T {
	return s.item
}

// Err returns the error that ended the stream, or nil after a clean end.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close stops the stream and releases the connection. It is safe to call
// more than once.
func (s *Stream[T]) Close() error {
	s.done = true
	s.started = true
	return s.release()
}

// All adapts the stream to range-over-func. A terminating error is yielded
// as the final pair. The stream is closed when the loop ends.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.item, nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func (s *Stream[T]) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.done = true
	s.release()
}

func (s *Stream[T]) finish() {
	s.done = true
	s.release()
}

func (s *Stream[T]) release() error {
	if s.stop != nil {
		s.stop()
	}
	return s.closeBody()
}

func (s *Stream[T]) closeBody() error {
	s.closeOnce.Do(func() {
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}

// readError maps a failed read. Cancellation wins over the I/O error it caused.
func (s *Stream[T]) readError(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return err
	}
	return &TransientError{Message: "stream interrupted", Timeout: isTimeout(err), Err: err}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
