package stream

import (
	"context"
	"io"
)

const defaultChunkSize = 4096

// Source yields raw chunks of one response body in the order they were
// produced. Next returns io.EOF once the body is exhausted.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// ReaderSource adapts an io.ReadCloser, typically an HTTP response body.
type ReaderSource struct {
	r   io.ReadCloser
	buf []byte
}

func NewReaderSource(r io.ReadCloser) *ReaderSource {
	return &ReaderSource{r: r, buf: make([]byte, defaultChunkSize)}
}

// Next blocks until the reader delivers data. Cancelling ctx does not
// interrupt a blocked Read; callers bind the reader's lifetime to ctx
// (as net/http does for request contexts).
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := s.r.Read(s.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		// Data read together with an error is delivered first; the error
		// surfaces on the following call.
		return chunk, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte{}, nil
}

func (s *ReaderSource) Close() error {
	return s.r.Close()
}

// SliceSource replays fixed chunks. Useful for tests and canned replies.
type SliceSource struct {
	chunks [][]byte
	pos    int
}

func NewSliceSource(chunks ...[]byte) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *SliceSource) Close() error { return nil }
