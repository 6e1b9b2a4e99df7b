package recovery

import (
	"sync"

	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"go.uber.org/zap"
)

// Degradable wraps a non-critical operation: on failure it returns a
// supplied fallback value instead of propagating the error, logging at
// Medium on entry to degraded state and Info on recovery. Grounded on
// original_source/core/error_recovery.py's GracefulDegradation.
type Degradable[T any] struct {
	Component string
	Fallback  T

	mu        sync.Mutex
	isDegraded bool

	errLog *errorlog.Store
	log    *zap.Logger
}

// NewDegradable builds a Degradable for component with the given fallback
// value.
func NewDegradable[T any](component string, fallback T, errLog *errorlog.Store, log *zap.Logger) *Degradable[T] {
	return &Degradable[T]{Component: component, Fallback: fallback, errLog: errLog, log: log}
}

// TryWithFallback runs fn. If critical is true, a failure is returned
// as-is (bypassing degradation); otherwise a failure returns the fallback
// value and marks the component degraded.
func (d *Degradable[T]) TryWithFallback(fn func() (T, error), critical bool) (T, error) {
	result, err := fn()
	if err == nil {
		d.markRecovered()
		return result, nil
	}

	if critical {
		return result, err
	}

	d.markDegraded(err)
	return d.Fallback, nil
}

// IsDegraded reports whether the component is currently in degraded mode.
func (d *Degradable[T]) IsDegraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isDegraded
}

func (d *Degradable[T]) markDegraded(err error) {
	d.mu.Lock()
	already := d.isDegraded
	d.isDegraded = true
	d.mu.Unlock()

	if already {
		return
	}
	if d.log != nil {
		d.log.Warn("component entering degraded mode", zap.String("component", d.Component), zap.Error(err))
	}
	if d.errLog != nil {
		d.errLog.LogError(model.FromError(err, model.SeverityMedium, d.Component, "component degraded, using fallback value", nil, nil))
	}
}

func (d *Degradable[T]) markRecovered() {
	d.mu.Lock()
	was := d.isDegraded
	d.isDegraded = false
	d.mu.Unlock()

	if was && d.log != nil {
		d.log.Info("component recovered from degraded state", zap.String("component", d.Component))
	}
}
