package ports

import (
	"context"
	"io"

	"github.com/bft-labs/rankflow/internal/domain"
)

// SourceReader yields windows of rows from an input.
type SourceReader interface {
	// Start opens the input. Network readers connect and register here.
	Start(ctx context.Context) error

	// Get blocks until windowSize rows are available.
	// Returns io.EOF once the input is exhausted or the server disconnected.
	Get(ctx context.Context, windowSize int) (domain.Window, error)

	// Stop releases the input. It is safe to call more than once.
	Stop() error
}

// ErrEndOfInput is what Get returns at the end of the stream.
var ErrEndOfInput = io.EOF
