package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hostward/device-agent/internal/collector"
	"github.com/hostward/device-agent/internal/delivery"
	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/metrics"
	"github.com/hostward/device-agent/internal/retry"
	"github.com/hostward/device-agent/internal/vault"
)

// CycleOperation names the retried unit of work in logs and metrics.
const CycleOperation = "collect_and_send"

// Saver persists a snapshot locally before delivery.
type Saver interface {
	Save(ctx context.Context, snap *collector.SystemSnapshot) (string, error)
}

// Deliverer sends a snapshot to the backend.
type Deliverer interface {
	Enabled() bool
	Send(ctx context.Context, snap *collector.SystemSnapshot) error
}

// CredentialChecker reports whether a credential is stored.
type CredentialChecker interface {
	HasCredential() bool
}

// Options configure an Agent. Saver may be nil to skip local persistence.
type Options struct {
	Collector   collector.Collector
	Saver       Saver
	Deliverer   Deliverer
	Credentials CredentialChecker
	Metrics     *metrics.Metrics
	Retry       retry.Policy
	// FailFast stops retrying on errors that cannot succeed on a repeat.
	FailFast bool
}

// Agent runs collection cycles. Cycles are meant to be driven by a single
// scheduler goroutine; Health may be read concurrently.
type Agent struct {
	opts Options
	now  func() time.Time

	mu        sync.RWMutex
	lastCycle time.Time
	lastErr   error
}

func New(opts Options) *Agent {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Agent{opts: opts, now: time.Now}
}

// RunCycle collects, saves and delivers one snapshot under the retry policy.
// The returned error is informational; the caller keeps scheduling cycles.
func (a *Agent) RunCycle(ctx context.Context) error {
	log := logger.FromContext(ctx)
	start := a.now()

	policy := a.opts.Retry
	if a.opts.FailFast {
		policy.Retryable = Retryable
	}
	policy.OnRetry = func(int, error, time.Duration) {
		a.opts.Metrics.ObserveRetry(CycleOperation)
	}

	err := retry.Run(ctx, CycleOperation, policy, a.attempt)
	if err != nil && ctx.Err() != nil {
		return err
	}

	a.record(start, err)
	if err != nil {
		a.explain(ctx, err)
		return err
	}

	log.Info().Dur("duration", a.now().Sub(start)).Msg("Cycle completed")
	return nil
}

func (a *Agent) attempt(ctx context.Context) error {
	snap, err := a.opts.Collector.Collect(ctx)
	if err != nil {
		return err
	}

	if a.opts.Saver != nil {
		if _, err := a.opts.Saver.Save(ctx, snap); err != nil {
			return err
		}
	}

	if a.opts.Deliverer == nil || !a.opts.Deliverer.Enabled() {
		return nil
	}
	err = a.opts.Deliverer.Send(ctx, snap)
	a.opts.Metrics.ObserveDelivery(delivery.Outcome(err))
	return err
}

func (a *Agent) record(at time.Time, err error) {
	a.mu.Lock()
	a.lastCycle = at
	a.lastErr = err
	a.mu.Unlock()
	a.opts.Metrics.ObserveCycle(err, at)
}

// explain logs what an operator has to do about a failed cycle.
func (a *Agent) explain(ctx context.Context, err error) {
	log := logger.FromContext(ctx)

	var ve *vault.Error
	switch {
	case errors.As(err, &ve) && ve.NeedsReregistration():
		log.Error().Err(err).Msg("Stored credential is unusable, re-register with `device-agent init` or `device-agent register <token>`")
	case errors.As(err, &ve):
		log.Error().Err(err).Msg("Credential storage failed, check permissions of the vault files")
	case delivery.IsKind(err, delivery.KindUnauthorized), delivery.IsKind(err, delivery.KindForbidden):
		logger.LogAuditEvent(logger.EventCredentialRejected, "collector", map[string]interface{}{
			"outcome": delivery.Outcome(err),
		})
		log.Error().Err(err).Msg("Collector rejected the credential, re-register the agent")
	default:
		log.Error().Err(err).Msg("Cycle failed, waiting for the next scheduled run")
	}
}

// Permanent reports whether repeating the cycle cannot fix err: vault
// failures and client-side delivery rejections.
func Permanent(err error) bool {
	var ve *vault.Error
	if errors.As(err, &ve) {
		return true
	}
	return delivery.IsKind(err, delivery.KindUnauthorized) ||
		delivery.IsKind(err, delivery.KindForbidden) ||
		delivery.IsKind(err, delivery.KindBadRequest)
}

// Retryable is the retry classifier used with fail-fast.
func Retryable(err error) bool {
	return !Permanent(err)
}
