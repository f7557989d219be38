// Package retry runs operations with exponential backoff and jitter.
// It is used for calls leaving the process (notification webhooks, the
// initial database and cache connections) and is a thin policy layer over
// cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryableError marks a failure worth another attempt. Without a RetryIf
// policy only marked errors are retried.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Permanent stops retrying even when RetryIf would accept err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func IsPermanent(err error) bool {
	var pe *backoff.PermanentError
	return errors.As(err, &pe)
}

// Config is the retry policy. The delay grows from InitialDelay by
// Multiplier up to MaxDelay, each one randomised by JitterFactor.
type Config struct {
	MaxAttempts  uint // first attempt included
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration // sleeps included
	Multiplier   float64
	JitterFactor float64

	RetryIf func(error) bool
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig tries three times within two minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		MaxElapsed:   2 * time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option adjusts a Config. Out-of-range values are ignored.
type Option func(*Config)

func WithMaxAttempts(n uint) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

func WithMaxElapsed(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxElapsed = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1.0 {
			c.Multiplier = m
		}
	}
}

// WithJitter takes a fraction in [0, 1].
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf replaces the "only Retryable errors" default.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry is called before each sleep with the attempt that failed.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier is an immutable policy; share it freely.
type Retrier struct {
	config Config
}

func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do executes the operation with retries.
// A permanent error or one rejected by RetryIf stops immediately; the
// returned error is always the operation's own, never a wrapper.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, r.options()...)
	return err
}

// With returns a copy of r with opts applied on top.
func (r *Retrier) With(opts ...Option) *Retrier {
	c := r.config
	for _, opt := range opts {
		opt(&c)
	}
	return &Retrier{config: c}
}

func (r *Retrier) options() []Option {
	c := r.config
	return []Option{func(dst *Config) { *dst = c }}
}

// Do runs operation under a one-off policy.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.JitterFactor

	attempt := 0
	op := func() (T, error) {
		attempt++
		res, err := operation(ctx)
		if err == nil {
			return res, nil
		}
		if IsPermanent(err) {
			return res, err
		}
		shouldRetry := IsRetryable(err)
		if cfg.RetryIf != nil {
			shouldRetry = cfg.RetryIf(err)
		}
		if !shouldRetry {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxAttempts),
		backoff.WithMaxElapsedTime(cfg.MaxElapsed),
	}
	if cfg.OnRetry != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, d time.Duration) {
			cfg.OnRetry(attempt, err, d)
		}))
	}

	res, err := backoff.Retry(ctx, op, retryOpts...)
	return res, unwrapMarkers(err)
}

func unwrapMarkers(err error) error {
	for err != nil {
		var permanent *backoff.PermanentError
		var retryable *RetryableError
		switch {
		case errors.As(err, &permanent) && permanent.Err != nil && permanent == err:
			err = permanent.Err
		case errors.As(err, &retryable) && retryable == err:
			err = retryable.Err
		default:
			return err
		}
	}
	return err
}

// Presets for the calls this service makes.

// WebhookRetrier returns a Retrier for outbound notification webhooks.
func WebhookRetrier() *Retrier {
	return New(
		WithMaxAttempts(4),
		WithInitialDelay(200*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	)
}

// StartupRetrier returns a Retrier for connecting to backing services at boot.
func StartupRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.1),
		WithRetryIf(func(error) bool { return true }),
	)
}
