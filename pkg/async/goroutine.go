package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/entitle/pkg/observability"
)

// SafeGo runs fn in a goroutine bounded by timeout. Errors and panics are
// logged instead of propagated. The returned channel closes when fn returns.
//
// Example:
//
//	async.SafeGo(ctx, logger, time.Minute, "initial sweep", func(ctx context.Context) error {
//	    _, err := sweeper.RunOnce(ctx)
//	    return err
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	if logger == nil {
		logger = observability.NopLogger()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer observability.RecoverPanic(logger, taskName)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Warn("Background task failed")
		}
	}()
	return done
}

// Batch applies fn to every item with at most workers running at once, each
// call bounded by timeout. The result is aligned with items: errs[i] is the
// outcome of items[i]. A panic in fn becomes that item's error.
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		g.Go(func() error {
			errs[i] = runOne(ctx, timeout, item, fn)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func runOne[T any](parent context.Context, timeout time.Duration, item T, fn func(context.Context, T) error) (err error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}
