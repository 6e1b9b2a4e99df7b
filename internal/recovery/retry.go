// Package recovery implements the Retry & Recovery Decorators (C8): a
// reusable exponential-backoff retry wrapper, a per-component circuit
// breaker, and a graceful-degradation helper with fallback values.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/errs"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"go.uber.org/zap"
)

// Retrier wraps a call with exponential-backoff retry, grounded on
// original_source/core/error_recovery.py's ExponentialBackoffRetry.
type Retrier struct {
	MaxRetries   int
	InitialDelay time.Duration
	Component    string
	LogErrors    bool

	errLog *errorlog.Store
	log    *zap.Logger
}

// NewRetrier builds a Retrier. errLog may be nil to disable error logging
// regardless of LogErrors.
func NewRetrier(maxRetries int, initialDelay time.Duration, component string, errLog *errorlog.Store, log *zap.Logger) *Retrier {
	return &Retrier{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		Component:    component,
		LogErrors:    true,
		errLog:       errLog,
		log:          log,
	}
}

// shouldRetry mirrors the original's transient-error check: IOError,
// OSError, TimeoutError, ConnectionError map onto errs.ErrTransient and the
// stdlib's context.DeadlineExceeded.
func shouldRetry(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || isTransient(err)
}

// isTransient is overridable by tests; production code marks transient
// failures with MarkTransient or by wrapping errs.ErrTransient.
var isTransient = func(err error) bool {
	return errors.Is(err, errTransientMarker) || errors.Is(err, errs.ErrTransient)
}

// errTransientMarker is the sentinel MarkTransient wraps into an error chain.
var errTransientMarker = transientSentinel{}

type transientSentinel struct{}

func (transientSentinel) Error() string { return "transient error" }

// MarkTransient wraps err so Retrier treats it as retry-eligible.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errTransientMarker, err)
}

// Do runs fn, retrying on transient failures up to MaxRetries times with
// delay initialDelay*2^(attempt-1) between attempts (spec §4.8). On final
// failure it logs a Medium ErrorEvent and returns the last error.
func (r *Retrier) Do(ctx context.Context, opName string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxRetries+1; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt <= r.MaxRetries && shouldRetry(err) {
			delay := r.InitialDelay * (1 << uint(attempt-1))
			if r.log != nil {
				r.log.Warn("retrying after transient failure",
					zap.String("component", r.Component),
					zap.String("op", opName),
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		break
	}

	if r.log != nil {
		r.log.Error("operation failed after retries",
			zap.String("component", r.Component), zap.String("op", opName), zap.Error(lastErr))
	}
	if r.LogErrors && r.errLog != nil {
		r.errLog.LogError(model.FromError(lastErr, model.SeverityMedium, r.Component,
			fmt.Sprintf("%s failed after retry attempts", opName), nil, nil))
	}
	return lastErr
}
