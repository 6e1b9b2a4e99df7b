// Package supervisor implements the Job Supervisor (C4): the single
// in-process authority over job lifecycle, wiring the Job Store (C3) to
// the Transfer Engine Adapters (C1) and the Deletion Pipeline (C2).
package supervisor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/molotovsingh/personal-backup-tool/internal/deletion"
	"github.com/molotovsingh/personal-backup-tool/internal/engine"
	"github.com/molotovsingh/personal-backup-tool/internal/errs"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"github.com/molotovsingh/personal-backup-tool/internal/store"
	"go.uber.org/zap"
)

// progressPersistInterval and progressPersistDelta gate how often a live
// engine's progress is written back to the store: at most once every two
// seconds, or immediately on a one-percent-or-greater change
// (original_source/core/job_manager.py: _should_persist_progress).
const (
	progressPersistInterval = 2 * time.Second
	progressPersistDelta    = 1
)

type progressSave struct {
	at      time.Time
	percent int
}

// Supervisor owns the mapping between durable Job records and their live
// engines. Two locks mirror the original's split: rw guards job-state
// transitions recorded in the store, engMu guards the in-memory maps of
// live engines and their bookkeeping (original_source/core/job_manager.py's
// ReadWriteLock plus its separate _engines_lock).
type Supervisor struct {
	store   *store.JobStore
	log     *zap.Logger
	logsDir string

	maxRetries int

	rw sync.RWMutex

	engMu            sync.Mutex
	engines          map[string]engine.Engine
	lastProgressSave map[string]progressSave
	engineStopTimes  map[string]time.Time

	listMu        sync.Mutex
	listCache     []model.Job
	listCacheTime time.Time
	listDirty     bool
}

// New builds a Supervisor over an already-opened store.
func New(s *store.JobStore, log *zap.Logger, logsDir string, maxRetries int) *Supervisor {
	return &Supervisor{
		store:            s,
		log:              log,
		logsDir:          logsDir,
		maxRetries:       maxRetries,
		engines:          make(map[string]engine.Engine),
		lastProgressSave: make(map[string]progressSave),
		engineStopTimes:  make(map[string]time.Time),
		listDirty:        true,
	}
}

// RecoverCrashedJobs resets any job left in Running at startup back to
// Paused: a Running record with no live engine can only mean the previous
// process died mid-transfer (spec §4.3, invariant 4 in §8).
func (s *Supervisor) RecoverCrashedJobs() error {
	s.rw.Lock()
	defer s.rw.Unlock()

	jobs, err := s.store.Load()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.Status != model.StatusRunning {
			continue
		}
		j.Status = model.StatusPaused
		j.Progress.StatusDetail = "recovered after restart"
		j.Touch(time.Now())
		if err := s.store.Save(j, j.Version-1); err != nil {
			s.log.Error("failed to recover crashed job", zap.String("job_id", j.ID), zap.Error(err))
		}
	}
	s.markListDirty()
	return nil
}

// CreateJob validates and persists a new job in Pending status.
func (s *Supervisor) CreateJob(name, source, dest string, jobType model.Type, settings model.Settings) (model.Job, error) {
	if source == "" || dest == "" {
		return model.Job{}, fmt.Errorf("%w: source and dest are required", errs.ErrInvalidInput)
	}

	s.rw.Lock()
	defer s.rw.Unlock()

	now := time.Now()
	job := model.Job{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Dest:      dest,
		Type:      jobType,
		Status:    model.StatusPending,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := s.store.Save(job, -1); err != nil {
		return model.Job{}, err
	}
	s.markListDirty()
	return job, nil
}

// StartJob launches the engine for job id, after validating its status
// transition and (when deletion is configured) the pre-flight safety
// checks.
func (s *Supervisor) StartJob(id string) error {
	s.rw.Lock()
	defer s.rw.Unlock()

	s.engMu.Lock()
	prev, tracked := s.engines[id]
	s.engMu.Unlock()
	if tracked && prev.IsRunning() {
		return fmt.Errorf("%w: job %s", errs.ErrAlreadyRunning, id)
	}

	job, ok, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	if !job.CanStart() {
		return fmt.Errorf("%w: job %s has status %s", errs.ErrInvalidInput, id, job.Status)
	}

	destIsCloud := job.Type == model.TypeCloudCopy
	if job.Settings.ShouldDelete() {
		result, err := deletion.PreFlightCheck(job.Source, job.Dest, destIsCloud)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPreFlight, err)
		}
		if result.Warning != "" {
			s.log.Warn("pre-flight warning", zap.String("job_id", id), zap.String("warning", result.Warning))
		}
	}

	cfg := engine.Config{
		JobID:             job.ID,
		Source:            job.Source,
		Dest:              job.Dest,
		BandwidthLimitKB:  job.Settings.BandwidthLimit,
		MaxRetries:        s.maxRetries,
		VerificationMode:  verificationModeFor(job.Settings),
		DeleteSourceAfter: job.Settings.DeleteSourceAfter,
		DeletionMode:      job.Settings.DeletionMode,
	}
	logPath := filepath.Join(s.logsDir, fmt.Sprintf("%s_%s.log", job.Type, job.ID))

	var eng engine.Engine
	switch job.Type {
	case model.TypeLocalCopy:
		eng = engine.NewLocalCopy(cfg, logPath, s.log)
	case model.TypeCloudCopy:
		eng = engine.NewCloudCopy(cfg, logPath, s.log)
	default:
		return fmt.Errorf("%w: unknown job type %s", errs.ErrInvalidInput, job.Type)
	}

	if !eng.Start() {
		return fmt.Errorf("%w: engine refused to start for job %s", errs.ErrAlreadyRunning, id)
	}

	s.engMu.Lock()
	s.engines[id] = eng
	delete(s.lastProgressSave, id)
	delete(s.engineStopTimes, id)
	s.engMu.Unlock()

	job.Status = model.StatusRunning
	job.Progress.StatusDetail = "running"
	job.Touch(time.Now())
	if err := s.store.Save(job, job.Version-1); err != nil {
		return err
	}
	s.markListDirty()
	return nil
}

// StopJob requests a graceful stop of job id's engine.
func (s *Supervisor) StopJob(id string) error {
	s.rw.Lock()
	defer s.rw.Unlock()

	job, ok, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	if !job.CanStop() {
		return fmt.Errorf("%w: job %s is not running", errs.ErrNotRunning, id)
	}

	s.engMu.Lock()
	eng, ok := s.engines[id]
	s.engMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no live engine for job %s", errs.ErrNotRunning, id)
	}

	eng.Stop()

	s.engMu.Lock()
	s.engineStopTimes[id] = time.Now()
	s.engMu.Unlock()

	job.Status = model.StatusPaused
	job.Progress.StatusDetail = "stopped by request"
	job.Touch(time.Now())
	if err := s.store.Save(job, job.Version-1); err != nil {
		return err
	}
	s.markListDirty()
	return nil
}

// DeleteJob removes a job record. A live engine is stopped first.
func (s *Supervisor) DeleteJob(id string) error {
	s.rw.Lock()
	defer s.rw.Unlock()

	s.engMu.Lock()
	eng, live := s.engines[id]
	s.engMu.Unlock()
	if live {
		eng.Stop()
		s.engMu.Lock()
		delete(s.engines, id)
		delete(s.lastProgressSave, id)
		delete(s.engineStopTimes, id)
		s.engMu.Unlock()
	}

	removed, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	s.markListDirty()
	return nil
}

// GetJobStatus returns the job record merged with its live engine's
// progress snapshot when one is running, else the last-persisted progress
// (spec.md:147).
func (s *Supervisor) GetJobStatus(id string) (model.Job, error) {
	s.rw.RLock()
	defer s.rw.RUnlock()

	job, ok, err := s.store.Get(id)
	if err != nil {
		return model.Job{}, err
	}
	if !ok {
		return model.Job{}, fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	return s.mergeLiveProgress(job), nil
}

// mergeLiveProgress overlays a live engine's progress snapshot onto job,
// when job has one running; otherwise job is returned unchanged.
func (s *Supervisor) mergeLiveProgress(job model.Job) model.Job {
	s.engMu.Lock()
	eng, ok := s.engines[job.ID]
	s.engMu.Unlock()
	if ok && eng.IsRunning() {
		job.Progress = eng.Progress()
	}
	return job
}

// ListJobs returns every job, each merged with its live engine's progress
// per GetJobStatus (spec.md:150). A cached list is reused until it has been
// marked dirty by a mutating operation or is one second old.
func (s *Supervisor) ListJobs() ([]model.Job, error) {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	if !s.listDirty && time.Since(s.listCacheTime) < time.Second {
		return s.listCache, nil
	}

	s.rw.RLock()
	jobs, err := s.store.Load()
	s.rw.RUnlock()
	if err != nil {
		return nil, err
	}

	for i := range jobs {
		jobs[i] = s.mergeLiveProgress(jobs[i])
	}

	s.listCache = jobs
	s.listCacheTime = time.Now()
	s.listDirty = false
	return jobs, nil
}

func (s *Supervisor) markListDirty() {
	s.listMu.Lock()
	s.listDirty = true
	s.listMu.Unlock()
}

// UpdateJobFromEngine pulls the live engine's progress for job id and
// persists it, throttled, or finalizes the job once the engine has
// stopped. It is driven periodically by the Event Monitor (C5).
func (s *Supervisor) UpdateJobFromEngine(id string) (bool, error) {
	s.rw.Lock()
	defer s.rw.Unlock()

	job, ok, err := s.store.Get(id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}

	s.engMu.Lock()
	eng, ok := s.engines[id]
	s.engMu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: no engine for job %s", errs.ErrNotRunning, id)
	}

	originalVersion := job.Version

	if eng.IsRunning() {
		progress := eng.Progress()
		job.Progress = progress

		if s.shouldPersistProgress(id, progress.Percent) {
			job.Touch(time.Now())
			s.checkConcurrentModification(id, originalVersion)
			if err := s.store.Save(job, originalVersion); err != nil {
				return false, err
			}
			s.engMu.Lock()
			s.lastProgressSave[id] = progressSave{at: time.Now(), percent: progress.Percent}
			s.engMu.Unlock()
		}
		return true, nil
	}

	// Engine has stopped: persist final progress before the status flip so
	// a crash between the two writes never loses transfer data.
	finalProgress := eng.Progress()
	job.Progress = finalProgress
	job.Touch(time.Now())
	s.checkConcurrentModification(id, originalVersion)
	if err := s.store.Save(job, originalVersion); err != nil {
		return false, err
	}
	originalVersion = job.Version

	if strings.Contains(finalProgress.StatusDetail, "failed") {
		job.Status = model.StatusFailed
	} else {
		job.Status = model.StatusCompleted
	}
	job.Touch(time.Now())
	s.checkConcurrentModification(id, originalVersion)
	if err := s.store.Save(job, originalVersion); err != nil {
		return false, err
	}

	s.engMu.Lock()
	delete(s.engines, id)
	delete(s.lastProgressSave, id)
	delete(s.engineStopTimes, id)
	s.engMu.Unlock()

	s.markListDirty()
	return true, fmt.Errorf("job %s finished with status %s", id, job.Status)
}

func (s *Supervisor) checkConcurrentModification(id string, expected int64) {
	storageJob, ok, err := s.store.Get(id)
	if err != nil || !ok {
		return
	}
	if storageJob.Version != expected {
		s.log.Warn("concurrent modification detected, proceeding last-write-wins",
			zap.String("job_id", id),
			zap.Int64("expected_version", expected),
			zap.Int64("storage_version", storageJob.Version))
	}
}

// shouldPersistProgress implements the throttle rule: persist at most once
// every two seconds, or immediately on a one-percentage-point-or-greater
// change (original_source/core/job_manager.py: _should_persist_progress).
func (s *Supervisor) shouldPersistProgress(id string, currentPercent int) bool {
	s.engMu.Lock()
	defer s.engMu.Unlock()

	last, ok := s.lastProgressSave[id]
	if !ok {
		return true
	}
	elapsed := time.Since(last.at) >= progressPersistInterval
	delta := currentPercent - last.percent
	if delta < 0 {
		delta = -delta
	}
	return elapsed || delta >= progressPersistDelta
}

// CleanupStoppedEngines drops bookkeeping for engines that have been
// stopped for more than 300 seconds without being reaped by
// UpdateJobFromEngine. The stop time is the one StopJob records or, for an
// engine that stopped on its own, the first pass that finds it stopped.
// Called periodically by the Event Monitor.
func (s *Supervisor) CleanupStoppedEngines() {
	s.engMu.Lock()
	defer s.engMu.Unlock()

	now := time.Now()
	for id, eng := range s.engines {
		if _, ok := s.engineStopTimes[id]; !ok && !eng.IsRunning() {
			s.engineStopTimes[id] = now
		}
	}
	cutoff := now.Add(-300 * time.Second)
	for id, stoppedAt := range s.engineStopTimes {
		if stoppedAt.Before(cutoff) {
			if eng, ok := s.engines[id]; ok && !eng.IsRunning() {
				delete(s.engines, id)
				delete(s.lastProgressSave, id)
			}
			delete(s.engineStopTimes, id)
		}
	}
}

// verificationModeFor maps a job's boolean checksum setting onto the
// string mode both engine adapters expect.
func verificationModeFor(settings model.Settings) string {
	if settings.ChecksumMode {
		return "checksum"
	}
	return "fast"
}

// LiveJobIDs returns the IDs of jobs with a currently tracked engine, as
// counted by the health endpoint.
func (s *Supervisor) LiveJobIDs() []string {
	s.engMu.Lock()
	defer s.engMu.Unlock()
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	return ids
}
