package sink

import (
	"context"
	"sync"

	"github.com/bft-labs/rankflow/internal/domain"
)

// Latest remembers the most recent result.
type Latest struct {
	mu  sync.RWMutex
	res *domain.Result
}

// NewLatest creates an empty Latest.
func NewLatest() *Latest {
	return &Latest{}
}

func (l *Latest) Publish(ctx context.Context, r *domain.Result) error {
	l.mu.Lock()
	l.res = r
	l.mu.Unlock()
	return nil
}

// Get returns the last result or nil.
func (l *Latest) Get() *domain.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.res
}

func (l *Latest) Close() error { return nil }
