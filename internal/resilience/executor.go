package resilience

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/log"
)

const (
	DefaultTimeoutDelay = time.Second

	unauthorizedWarnEvery = 5
)

// Outcome is any response that carries an HTTP-like status code.
type Outcome interface {
	StatusCode() int
}

// RefreshFunc renews the credential the wrapped call authenticates with.
type RefreshFunc func(ctx context.Context) error

type Executor struct {
	timeoutDelay time.Duration
	logger       zerolog.Logger
	wait         func(ctx context.Context, d time.Duration) error
}

type Option func(*Executor)

// WithTimeoutDelay sets the pause before retrying a request-timeout outcome.
func WithTimeoutDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.timeoutDelay = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		timeoutDelay: DefaultTimeoutDelay,
		logger:       log.WithComponent("executor"),
		wait:         sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs call until it yields an outcome that is neither 401 nor 408.
//
// A 401 triggers refresh and an immediate retry. A 408 is retried after the
// executor's timeout delay. Neither loop is capped. A transport error from
// call is returned as-is, a refresh error is returned wrapped. Cancelling ctx
// stops the loop with ctx.Err().
func Execute[R Outcome](ctx context.Context, ex *Executor, refresh RefreshFunc, call func(context.Context) (R, error)) (R, error) {
	if ex == nil {
		ex = NewExecutor()
	}

	var zero R
	unauthorized := 0
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := call(ctx)
		if err != nil {
			return zero, err
		}

		switch result.StatusCode() {
		case http.StatusUnauthorized:
			if refresh == nil {
				return result, nil
			}
			unauthorized++
			retriesTotal.WithLabelValues(reasonUnauthorized).Inc()
			if unauthorized%unauthorizedWarnEvery == 0 {
				ex.logger.Warn().
					Int(log.FieldAttempt, attempt).
					Int("consecutive_unauthorized", unauthorized).
					Msg("request still unauthorized after credential refresh")
			}
			if err := refresh(ctx); err != nil {
				return zero, fmt.Errorf("refresh credential: %w", err)
			}
		case http.StatusRequestTimeout:
			unauthorized = 0
			retriesTotal.WithLabelValues(reasonTimeout).Inc()
			ex.logger.Debug().
				Int(log.FieldAttempt, attempt).
				Dur("delay", ex.timeoutDelay).
				Msg("request timed out, retrying")
			if err := ex.wait(ctx, ex.timeoutDelay); err != nil {
				return zero, err
			}
		default:
			return result, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
