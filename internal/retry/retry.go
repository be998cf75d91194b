package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hostward/device-agent/internal/logger"
)

const (
	DefaultMaxRetries   = 5
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultMultiplier   = 2.0
	DefaultJitter       = 0.5
)

// Policy bounds a retried operation. MaxRetries is the total number of
// attempts, not the number of retries after the first one.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the randomization factor applied to each delay, in [0, 1].
	Jitter float64

	// Retryable decides whether a failed attempt may be repeated. Nil retries
	// every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		Jitter:       DefaultJitter,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = 0

	capped := &cappedBackOff{BackOff: exp, max: p.MaxDelay}
	return backoff.WithContext(backoff.WithMaxRetries(capped, uint64(p.MaxRetries-1)), ctx)
}

// cappedBackOff clamps jittered delays to max.
type cappedBackOff struct {
	backoff.BackOff
	max time.Duration
}

func (c *cappedBackOff) NextBackOff() time.Duration {
	next := c.BackOff.NextBackOff()
	if next != backoff.Stop && next > c.max {
		return c.max
	}
	return next
}

// ExhaustedError is returned when an operation failed on its final attempt or
// with an error the policy refused to retry.
type ExhaustedError struct {
	Name     string
	Attempts int
	// Permanent is set when attempts stopped early on a non-retryable error.
	Permanent bool
	Last      error
}

func (e *ExhaustedError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("%s: not retryable after %d attempt(s): %v", e.Name, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s: giving up after %d attempt(s): %v", e.Name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, the attempt budget in policy is spent, a
// non-retryable error is returned, or ctx is cancelled. Sleeps between
// attempts grow exponentially up to policy.MaxDelay. op may run more than
// once and must tolerate being repeated after a partial failure.
func Do[T any](ctx context.Context, name string, policy Policy, op func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	log := logger.FromContext(ctx)

	attempts := 0
	permanent := false
	var last error

	operation := func() (T, error) {
		attempts++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		last = err
		if policy.Retryable != nil && !policy.Retryable(err) {
			permanent = true
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempts).
			Int("max_attempts", policy.MaxRetries).
			Dur("retry_in", wait).
			Msg("Attempt failed, retrying")
		if policy.OnRetry != nil {
			policy.OnRetry(attempts, err, wait)
		}
	}

	res, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err == nil {
		if attempts > 1 {
			log.Info().Str("operation", name).Int("attempts", attempts).Msg("Operation succeeded after retry")
		}
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !permanent {
		var zero T
		return zero, fmt.Errorf("%s: cancelled after %d attempt(s): %w", name, attempts, ctxErr)
	}

	log.Error().
		Err(last).
		Str("operation", name).
		Int("attempts", attempts).
		Bool("permanent", permanent).
		Msg("Operation failed")

	var zero T
	return zero, &ExhaustedError{Name: name, Attempts: attempts, Permanent: permanent, Last: last}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, name string, policy Policy, op func(context.Context) error) error {
	_, err := Do(ctx, name, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
