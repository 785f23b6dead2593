package solver

import (
	"context"
	"time"

	"github.com/garden-io/garden-core/pkg/gardenerr"
)

// baseBackoff is the first retry delay; each subsequent attempt doubles
// it ("retries transient errors... with exponential backoff").
const baseBackoff = 500 * time.Millisecond

// runWithRetry runs spec.Run, retrying only errors gardenerr classifies
// as transient, up to the solver's configured MaxRetries.
func (s *Solver) runWithRetry(ctx context.Context, spec Spec) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		taskCtx := ctx
		var cancel context.CancelFunc
		if spec.Timeout > 0 {
			taskCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		}
		val, err := spec.Run(taskCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !gardenerr.KindOf(err).Retryable() {
			return nil, err
		}
		if attempt == s.opts.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}
		delay := baseBackoff << attempt
		log.Printf("task %s failed with transient error (attempt %d/%d), retrying in %s: %v", spec.Key, attempt+1, s.opts.MaxRetries+1, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, lastErr
		}
	}
	return nil, lastErr
}
