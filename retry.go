package loopy

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryOptions hold retry wrapper settings.
type retryOptions struct {
	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

// RetryOption configures NewRetryService.
type RetryOption func(*retryOptions)

// WithMaxAttempts caps the total number of submission attempts (first try
// included). Defaults to 4.
func WithMaxAttempts(n uint) RetryOption {
	return func(o *retryOptions) {
		o.maxAttempts = n
	}
}

// WithInitialInterval sets the first backoff delay. Defaults to 500ms.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(o *retryOptions) {
		o.initialInterval = d
	}
}

// WithMaxInterval caps the backoff delay between attempts. Defaults to 30s.
func WithMaxInterval(d time.Duration) RetryOption {
	return func(o *retryOptions) {
		o.maxInterval = d
	}
}

// NewRetryService wraps a CompletionService with exponential backoff for
// retryable upstream failures (rate limiting, server errors). The resolution
// loop itself never retries; this decorator is the host-level policy the
// error model anticipates. Schema and tool errors are never retried, and
// tool handlers are unaffected — only service submissions are repeated.
func NewRetryService(svc CompletionService, opts ...RetryOption) CompletionService {
	o := retryOptions{
		maxAttempts:     4,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &retryService{svc: svc, opts: o}
}

type retryService struct {
	svc  CompletionService
	opts retryOptions
}

func (s *retryService) Complete(ctx context.Context, req Request) (*Response, error) {
	op := func() (*Response, error) {
		resp, err := s.svc.Complete(ctx, req)
		if err != nil {
			var se *ServiceError
			if errors.As(err, &se) && se.Retryable() {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.initialInterval
	bo.MaxInterval = s.opts.maxInterval
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.opts.maxAttempts),
	)
}
