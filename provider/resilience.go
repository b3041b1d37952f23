package provider

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/httpclient"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/resilience"
)

// Guard protects calls to one collaborator with a circuit breaker and a
// bounded retry. Every failure leaving a Guard is an AppError; anything that
// is not already one becomes a CollaboratorFailure naming the service.
type Guard struct {
	service string
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewGuard builds a Guard for service from cfg.
func NewGuard(service string, cfg Config, log *logger.Logger) *Guard {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent(service)

	cb := resilience.DefaultCircuitBreakerConfig(service)
	if cfg.MaxFailures > 0 {
		cb.MaxFailures = cfg.MaxFailures
	}
	cb.Timeout = cfg.ResetTimeoutDuration()
	cb.IsFailure = countsAgainstCircuit
	cb.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("circuit state changed", map[string]interface{}{
			"from": from.String(),
			"to":   to.String(),
		})
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Retries > 0 {
		retry.MaxAttempts = cfg.Retries
	}
	retry.InitialBackoff = 500 * time.Millisecond
	retry.RetryIf = isRetryable
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("retrying collaborator call", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
			"backoff": backoff.String(),
		})
	}

	return &Guard{service: service, breaker: resilience.NewCircuitBreaker(cb), retry: retry}
}

// Service returns the collaborator name used in errors.
func (g *Guard) Service() string { return g.service }

// Do runs fn under the circuit breaker, retrying transient failures.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := resilience.RetryFunc(ctx, g.retry, func() error {
		return g.breaker.Execute(func() error { return fn(ctx) })
	})
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.CollaboratorFailure(g.service, err)
}

// Call is Do for functions that produce a value.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Permanent marks err as not worth retrying. The breaker still counts it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var perm *permanentError
	if stderrors.As(err, &perm) {
		return false
	}
	if _, ok := errors.AsAppError(err); ok {
		return false
	}
	if httpclient.IsClassified(err) {
		return httpclient.IsRetryable(err)
	}
	return resilience.DefaultRetryIf(err)
}

// Caller mistakes (validation errors) and cancellations do not say anything
// about the backend's health.
func countsAgainstCircuit(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code != errors.ErrCodeInvalidInput && appErr.Code != errors.ErrCodeMissingField
	}
	return true
}
