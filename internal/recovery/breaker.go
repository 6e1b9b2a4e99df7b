package recovery

import (
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker is a per-component circuit breaker built on gobreaker's
// Closed/Open/HalfOpen state machine (spec §4.8), grounded on
// original_source/core/error_recovery.py's CircuitBreaker (failure
// threshold, recovery timeout, component-scoped state).
type Breaker struct {
	cb        *gobreaker.CircuitBreaker
	component string
	errLog    *errorlog.Store
	log       *zap.Logger
}

// NewBreaker builds a Breaker for component: failureThreshold consecutive
// failures open the circuit; after recoveryTimeout it transitions to
// HalfOpen; a single success in HalfOpen closes it.
func NewBreaker(component string, failureThreshold uint32, recoveryTimeout time.Duration, errLog *errorlog.Store, log *zap.Logger) *Breaker {
	b := &Breaker{component: component, errLog: errLog, log: log}

	settings := gobreaker.Settings{
		Name:        component,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if log == nil {
				return
			}
			log.Info("circuit breaker state change",
				zap.String("component", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if to == gobreaker.StateOpen && errLog != nil {
				errLog.LogError(model.FromError(ErrCircuitOpened(component), model.SeverityHigh, component,
					"circuit breaker opened", nil, nil))
			}
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Call executes fn through the breaker. While Open, it returns
// (false, nil) immediately per spec §4.8, without invoking fn.
func (b *Breaker) Call(fn func() (any, error)) (bool, any) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		return false, nil
	}
	return true, result
}

// State reports the breaker's current state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// circuitOpenedError names the component whose breaker just tripped, for
// the ErrorEvent logged on the Closed->Open transition.
type circuitOpenedError struct{ component string }

func (e circuitOpenedError) Error() string {
	return "circuit breaker opened for " + e.component
}

// ErrCircuitOpened builds the error recorded against an OnStateChange
// transition into Open.
func ErrCircuitOpened(component string) error {
	return circuitOpenedError{component: component}
}
