package ports

import (
	"context"

	"github.com/bft-labs/rankflow/internal/domain"
)

// ResultSink receives results in publication order.
type ResultSink interface {
	Publish(ctx context.Context, result *domain.Result) error
	Close() error
}
