// Package retry re-runs failing venue calls with exponential backoff.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultMaxTries  = 16
	DefaultBaseDelay = 100 * time.Millisecond
)

type options struct {
	maxTries  uint64
	baseDelay time.Duration
	permanent func(error) bool
	notify    func(err error, attempt int, next time.Duration)
}

type Option func(*options)

// MaxTries sets how many retries follow the first failed call.
func MaxTries(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxTries = uint64(n)
	}
}

// BaseDelay sets the pause after the first failure; it doubles on every retry.
func BaseDelay(d time.Duration) Option {
	return func(o *options) { o.baseDelay = d }
}

// Permanent marks errors that must be returned at once without retrying.
func Permanent(fn func(error) bool) Option {
	return func(o *options) { o.permanent = fn }
}

// Notify is called before each pause with the error, the failed attempt
// number (starting at 1) and the pause length.
func Notify(fn func(err error, attempt int, next time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// newBackOff pauses baseDelay * 2^attempt with no jitter and no overall deadline.
func newBackOff(ctx context.Context, o *options) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     o.baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	if o.maxTries == 0 {
		// WithMaxRetries treats 0 as unlimited
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, o.maxTries), ctx)
}

// Do runs op until it succeeds, fails permanently or the retry budget is
// spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := &options{maxTries: DefaultMaxTries, baseDelay: DefaultBaseDelay}
	for _, opt := range opts {
		opt(o)
	}

	var (
		result  T
		attempt int
	)
	err := backoff.RetryNotify(func() error {
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		attempt++
		if o.permanent != nil && o.permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBackOff(ctx, o), func(err error, next time.Duration) {
		if o.notify != nil {
			o.notify(err, attempt, next)
		}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Run is Do for operations without a result.
func Run(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}
