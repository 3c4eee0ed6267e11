package retry

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// DoWithResult calls fn until it succeeds, the attempts run out or the context is done.
// The returned error holds the errors of every attempt.
func DoWithResult[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	opt := buildOptions(opts)

	var (
		attempts int
		errs     *multierror.Error
	)
	for {
		t, err := fn()
		if err == nil {
			return t, nil
		}
		errs = multierror.Append(errs, err)
		attempts++
		if attempts >= opt.Attempts {
			return t, errors.Wrapf(errs, "failed after %d attempts", attempts)
		}

		select {
		case <-time.After(opt.Delay):
		case <-ctx.Done():
			return t, errors.Wrapf(multierror.Append(errs, ctx.Err()), "gave up after %d attempts", attempts)
		}
	}
}

// Do is DoWithResult for functions returning only an error.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts...)
	return err
}
