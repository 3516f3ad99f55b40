package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/rankflow/pkg/log"
)

// ErrReconnectsExhausted is returned when MaxReconnects attempts all failed.
var ErrReconnectsExhausted = errors.New("reconnect attempts exhausted")

// RunnerConfig controls session restarts.
type RunnerConfig struct {
	// Reconnect restarts the session after it ends or fails.
	Reconnect bool

	// MaxReconnects bounds consecutive restarts; zero means unlimited.
	MaxReconnects int

	RetryMin time.Duration
	RetryMax time.Duration

	// Retryable reports whether err warrants a restart. Nil retries everything.
	Retryable func(error) bool
}

// Attempt runs one session. A nil return means the input ended normally.
type Attempt func(ctx context.Context) error

// Runner repeats an Attempt with backoff between tries.
type Runner struct {
	cfg    RunnerConfig
	logger log.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig, logger log.Logger) *Runner {
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 30 * time.Second
	}
	return &Runner{cfg: cfg, logger: log.OrNoop(logger)}
}

// Run calls attempt until it ends without Reconnect, fails with a
// non-retryable error, the restart budget is spent or ctx is done.
func (r *Runner) Run(ctx context.Context, attempt Attempt) error {
	backoff := NewBackoff(r.cfg.RetryMin, r.cfg.RetryMax)
	restarts := 0

	for {
		started := time.Now()
		err := attempt(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !r.cfg.Reconnect {
			return err
		}
		if err != nil && r.cfg.Retryable != nil && !r.cfg.Retryable(err) {
			return err
		}

		// A session that ran for a while earns a fresh budget.
		if time.Since(started) > r.cfg.RetryMax {
			backoff.Reset()
			restarts = 0
		}
		restarts++
		if r.cfg.MaxReconnects > 0 && restarts > r.cfg.MaxReconnects {
			if err == nil {
				return nil
			}
			return fmt.Errorf("%w after %d attempts: %v", ErrReconnectsExhausted, r.cfg.MaxReconnects, err)
		}

		fields := []log.Field{log.Int("attempt", restarts), log.Duration("delay", backoff.Current())}
		if err != nil {
			fields = append(fields, log.Err(err))
		}
		r.logger.Warn("session ended, restarting", fields...)

		if werr := backoff.Wait(ctx); werr != nil {
			return werr
		}
	}
}
