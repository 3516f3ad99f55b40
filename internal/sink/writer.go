package sink

import (
	"context"
	"io"
	"sync"

	"github.com/bft-labs/rankflow/internal/domain"
)

// Writer writes one JSON object per line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewWriter writes to w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewWriteCloser writes to wc and closes it on Close.
func NewWriteCloser(wc io.WriteCloser) *Writer {
	return &Writer{w: wc, c: wc}
}

// Publish writes r followed by a newline.
func (s *Writer) Publish(ctx context.Context, r *domain.Result) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}

func (s *Writer) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
