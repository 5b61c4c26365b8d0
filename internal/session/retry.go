package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

// Retryable reports whether an Attach error may clear by itself: the
// producer has not finished laying out the region, or refused the request.
// A wrong magic or a mapping error will not change between attempts.
func Retryable(err error) bool {
	return errors.Is(err, shmlog.ErrNotInitialized) || errors.Is(err, ErrNegotiation)
}

// AttachWithRetry calls Attach with exponential backoff while the error is
// Retryable, for up to maxElapsed. A zero maxElapsed makes one attempt.
func AttachWithRetry(ctx context.Context, cfg Config, negotiator Negotiator, mapper Mapper, sink shmlog.Sink, maxElapsed time.Duration, opts ...Option) (*Session, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if maxElapsed <= 0 {
		return Attach(ctx, cfg, negotiator, mapper, sink, opts...)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxElapsed

	var s *Session
	operation := func() error {
		var err error
		s, err = Attach(ctx, cfg, negotiator, mapper, sink, opts...)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		o.logger.Warn("Log region not ready, retrying attach",
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return s, nil
}
