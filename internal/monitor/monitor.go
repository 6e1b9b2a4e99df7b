// Package monitor implements the Event Monitor (C5): the single poll loop
// that drives progress persistence, detects status transitions, and feeds
// the Subscriber Fan-out (C6).
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"github.com/molotovsingh/personal-backup-tool/internal/recovery"
	"go.uber.org/zap"
)

const (
	runningPollInterval = time.Second
	idlePollInterval    = 5 * time.Second
	reaperEveryNCycles  = 10
	errorBackoff        = time.Second

	// storeFailureThreshold/storeRecoveryTimeout guard the monitor's calls
	// into the Job Store: consecutive failures open the breaker so a
	// struggling store isn't hammered every poll cycle (spec §4.8).
	storeFailureThreshold uint32 = 3
	storeRecoveryTimeout         = 30 * time.Second
)

// Supervisor is the subset of *supervisor.Supervisor the monitor drives.
type Supervisor interface {
	ListJobs() ([]model.Job, error)
	UpdateJobFromEngine(id string) (bool, error)
	CleanupStoppedEngines()
}

// Monitor runs the poll loop described in spec §4.5.
type Monitor struct {
	sup    Supervisor
	bus    *fanout.Bus
	errLog *errorlog.Store
	log    *zap.Logger

	storeBreaker *recovery.Breaker

	prevStatus map[string]model.Status
	cycle      int
}

// New builds a Monitor. errLog may be nil in tests that don't exercise the
// error-logging path.
func New(sup Supervisor, bus *fanout.Bus, errLog *errorlog.Store, log *zap.Logger) *Monitor {
	return &Monitor{
		sup:          sup,
		bus:          bus,
		errLog:       errLog,
		log:          log,
		storeBreaker: recovery.NewBreaker("monitor.store", storeFailureThreshold, storeRecoveryTimeout, errLog, log),
		prevStatus:   make(map[string]model.Status),
	}
}

// Run drives the poll loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		anyRunning, err := m.runCycle()
		if err != nil {
			m.log.Error("event monitor cycle failed", zap.Error(err))
			if m.errLog != nil {
				m.errLog.LogError(model.FromError(err, model.SeverityHigh, "monitor", "event monitor cycle failed", nil, nil))
			}
			m.bus.Publish(fanout.Notify(fanout.LevelError, "monitor degraded", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		m.cycle++
		if m.cycle%reaperEveryNCycles == 0 {
			m.sup.CleanupStoppedEngines()
		}

		sleep := idlePollInterval
		if anyRunning {
			sleep = runningPollInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// runCycle performs one poll: update every Running job from its engine,
// then diff the refreshed statuses against the previous cycle's map to
// decide which update messages to publish. It returns whether any job is
// currently Running (used to choose the next sleep interval).
func (m *Monitor) runCycle() (bool, error) {
	jobs, err := m.listJobsThroughBreaker()
	if err != nil {
		return false, err
	}

	for _, j := range jobs {
		if j.Status != model.StatusRunning {
			continue
		}
		if _, err := m.sup.UpdateJobFromEngine(j.ID); err != nil {
			// A finished engine reports its terminal transition via this
			// error return; that is expected, not a monitor failure.
			m.log.Debug("update_job_from_engine", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	jobs, err = m.listJobsThroughBreaker()
	if err != nil {
		return false, err
	}

	anyRunning := false
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		seen[j.ID] = true
		prev, known := m.prevStatus[j.ID]

		if j.Status == model.StatusRunning {
			anyRunning = true
		}

		if known && prev == j.Status {
			continue
		}

		switch {
		case j.Status == model.StatusRunning:
			m.bus.Publish(fanout.JobUpdate(j, false))
		case prev == model.StatusRunning &&
			(j.Status == model.StatusCompleted || j.Status == model.StatusFailed || j.Status == model.StatusPaused):
			m.bus.Publish(fanout.JobUpdate(j, true))
		}

		m.prevStatus[j.ID] = j.Status
	}

	for id := range m.prevStatus {
		if !seen[id] {
			delete(m.prevStatus, id)
		}
	}

	return anyRunning, nil
}

// errStoreUnavailable is returned when storeBreaker's Call reports failure,
// whether from the underlying ListJobs error or from the breaker itself
// being open; per spec §4.8 both collapse to the same immediate-return
// contract, so the original error is not distinguishable here.
var errStoreUnavailable = fmt.Errorf("job store unavailable")

// listJobsThroughBreaker routes the poll loop's store reads through
// storeBreaker so a struggling store doesn't get hammered every cycle.
func (m *Monitor) listJobsThroughBreaker() ([]model.Job, error) {
	ok, result := m.storeBreaker.Call(func() (any, error) {
		return m.sup.ListJobs()
	})
	if !ok {
		return nil, errStoreUnavailable
	}
	return result.([]model.Job), nil
}
