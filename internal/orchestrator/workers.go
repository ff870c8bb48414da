package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// runBatch runs fn for every index in [0, total) with at most limit workers.
// Individual failures are absorbed and counted; only context cancellation
// aborts the batch. fn is responsible for recording its own error details.
func runBatch(ctx context.Context, limit, total int, fn func(ctx context.Context, index int) error) (int, error) {
	if total <= 0 {
		return 0, nil
	}
	if limit <= 0 {
		limit = 1
	}

	var failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(failed.Load()), err
}

// pause waits the configured inter-batch delay, returning early when the
// context is cancelled.
func (o *Orchestrator) pause(ctx context.Context) error {
	delay := o.cfg.BatchDelayDuration()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
