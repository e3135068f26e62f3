package exchange

import (
	"context"
	"errors"
	"time"

	drepo "BTCPulse/internal/domain/repository"
	"BTCPulse/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// Retry policies.
const (
	PolicyConstant    = "constant"
	PolicyLinear      = "linear"
	PolicyExponential = "exponential"
)

// RetryPolicy bounds consecutive failures of a single request.
type RetryPolicy struct {
	Kind        string
	Delay       time.Duration
	MaxFailures int
}

// linearBackOff waits Delay, 2*Delay, 3*Delay...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

func (p RetryPolicy) newBackOff() backoff.BackOff {
	switch p.Kind {
	case PolicyLinear:
		return &linearBackOff{step: p.Delay}
	case PolicyExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.Multiplier = 2
		eb.RandomizationFactor = 0.2
		eb.MaxInterval = 30 * p.Delay
		eb.MaxElapsedTime = 0 // bounded by MaxFailures and the context
		return eb
	default:
		return backoff.NewConstantBackOff(p.Delay)
	}
}

func (p RetryPolicy) maxFailures() int {
	if p.MaxFailures < 1 {
		return 1
	}
	return p.MaxFailures
}

// Retrier runs one request against the current endpoint, rotating to the next
// mirror after every failure until the failure ceiling is reached.
type Retrier struct {
	source    string
	policy    RetryPolicy
	endpoints *Endpoints
	log       *logger.Logger
	metrics   drepo.Metrics
}

func NewRetrier(source string, policy RetryPolicy, endpoints *Endpoints, l *logger.Logger, m drepo.Metrics) *Retrier {
	return &Retrier{source: source, policy: policy, endpoints: endpoints, log: l, metrics: m}
}

// Do calls op with the current base URL until it succeeds, the ceiling is hit or
// ctx is done. It returns the number of attempts made and the last error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context, baseURL string) error) (int, error) {
	attempts := 0
	b := backoff.WithContext(
		backoff.WithMaxRetries(r.policy.newBackOff(), uint64(r.policy.maxFailures()-1)),
		ctx,
	)

	operation := func() error {
		attempts++
		base := r.endpoints.Current()
		err := op(ctx, base)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		r.metrics.RecordSourceFailure(r.source)
		next := r.endpoints.Rotate()
		if next != base {
			r.metrics.RecordRotation(r.source)
		}
		r.log.Warn("source request failed",
			logger.String("source", r.source),
			logger.String("endpoint", base),
			logger.String("next_endpoint", next),
			logger.Int("attempt", attempts),
			logger.Int("max_failures", r.policy.maxFailures()),
			logger.Error(err),
		)
		return err
	}

	err := backoff.Retry(operation, b)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return attempts, err
}
