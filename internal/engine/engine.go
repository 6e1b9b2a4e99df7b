// Package engine implements the Transfer Engine Adapter (C1): the two
// subprocess-driven backup tool adapters (LocalCopy over rsync, CloudCopy
// over rclone), their progress parsers, and the shared retry/backoff state
// machine.
package engine

import (
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/model"
)

// Engine is the contract the Job Supervisor (C4) drives against; LocalCopy
// and CloudCopy both implement it.
type Engine interface {
	// Start launches the tool as a child process. Returns false if a
	// process is already live.
	Start() bool
	// Stop politely terminates the child, draining trailing output to
	// capture final progress, then force-kills if the grace period elapses.
	Stop() bool
	// IsRunning reports whether a child exists and has not exited.
	IsRunning() bool
	// Progress returns a value copy of the current snapshot.
	Progress() model.Progress
}

// Config is the set of options shared by both engine variants.
type Config struct {
	JobID             string
	Source            string
	Dest              string
	BandwidthLimitKB  int64
	MaxRetries        int
	VerificationMode  string // "fast", "checksum", "verify_after"
	DeleteSourceAfter bool
	DeletionMode      model.DeletionMode
}

// backoffDelay computes the exponential backoff for retry attempt n
// (n=0 for the first retry): min(2^n, 60) seconds (spec §4.1).
func backoffDelay(n int) time.Duration {
	seconds := int64(1) << uint(n)
	if n < 0 || seconds > 60 || seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// retryingStatusDetail is set while a TransientNetwork exit is in its
// backoff wait; external observers still see status=running (spec §4.1).
const retryingStatusDetail = "running (retrying...)"

// newDeletionProgress returns the initial Deletion sub-block for a job
// configured to delete its source after a successful transfer, or nil when
// deletion is not configured (spec §4.2, §8 invariant 5). PerFile mode has
// the transfer tool delete each file as it copies, so it starts straight in
// the Deleting phase rather than Transfer.
func newDeletionProgress(cfg Config) *model.Deletion {
	if !cfg.DeleteSourceAfter {
		return nil
	}
	phase := model.DeletionPhaseTransfer
	if cfg.DeletionMode == model.DeletionModePerFile {
		phase = model.DeletionPhaseDeleting
	}
	return &model.Deletion{Enabled: true, Mode: cfg.DeletionMode, Phase: phase}
}
