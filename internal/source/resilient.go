package source

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

// ErrCircuitOpen is returned while a connector's breaker is open.
var ErrCircuitOpen = circuitbreaker.ErrOpen

const (
	minBackoff   = 500 * time.Millisecond
	maxBackoff   = 5 * time.Second
	breakerDelay = time.Minute
)

// Resilient retries transient failures of the wrapped connector and stops
// calling it for a while after repeated failures.
type Resilient struct {
	next    Connector
	breaker circuitbreaker.CircuitBreaker[[]model.RawCandidate]
	exec    failsafe.Executor[[]model.RawCandidate]
}

func NewResilient(next Connector, cfg config.ResilienceConfig, log *logrus.Entry) *Resilient {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("source", next.Name())

	retry := retrypolicy.NewBuilder[[]model.RawCandidate]().
		HandleIf(func(_ []model.RawCandidate, err error) bool { return retryable(err) }).
		WithBackoff(defaultDur(cfg.Backoff, minBackoff), defaultDur(cfg.MaxBackoff, maxBackoff)).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[[]model.RawCandidate]) {
			log.WithField("attempt", e.Attempts()).WithError(e.LastError()).Debug("retrying fetch")
		}).
		Build()

	threshold, window := cfg.FailureThreshold, cfg.FailureWindow
	if threshold == 0 {
		threshold = 5
	}
	if window < threshold {
		window = threshold
	}
	breaker := circuitbreaker.NewBuilder[[]model.RawCandidate]().
		HandleIf(func(_ []model.RawCandidate, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		WithFailureThresholdRatio(threshold, window).
		WithDelay(defaultDur(cfg.BreakerDelay, breakerDelay)).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			log.WithFields(logrus.Fields{
				"from_state": e.OldState.String(),
				"to_state":   e.NewState.String(),
			}).Warn("circuit breaker state change")
		}).
		Build()

	// The breaker wraps retry: an exhausted retry sequence is one failure.
	return &Resilient{next: next, breaker: breaker, exec: failsafe.With[[]model.RawCandidate](breaker, retry)}
}

func (r *Resilient) Name() string { return r.next.Name() }

func (r *Resilient) Fetch(ctx context.Context, p country.Profile) ([]model.RawCandidate, error) {
	return r.exec.WithContext(ctx).Get(func() ([]model.RawCandidate, error) {
		return r.next.Fetch(ctx, p)
	})
}

// BreakerOpen reports whether calls are currently short-circuited.
func (r *Resilient) BreakerOpen() bool { return r.breaker.IsOpen() }

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *util.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
