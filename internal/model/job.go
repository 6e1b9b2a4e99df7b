// Package model defines the Job, progress, and settings records shared by
// every component of the supervisor core.
package model

import "time"

// Type distinguishes which transfer engine a job drives.
type Type string

const (
	TypeLocalCopy Type = "local_copy"
	TypeCloudCopy Type = "cloud_copy"
)

// Status is the Job lifecycle state machine's current state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DeletionMode selects how source-deletion is driven after a successful transfer.
type DeletionMode string

const (
	DeletionModeVerifyThenDelete DeletionMode = "verify_then_delete"
	DeletionModePerFile          DeletionMode = "per_file"
)

// DeletionPhase tracks progress through the deletion pipeline (C2).
type DeletionPhase string

const (
	DeletionPhaseNone      DeletionPhase = "none"
	DeletionPhaseTransfer  DeletionPhase = "transfer"
	DeletionPhaseVerifying DeletionPhase = "verifying"
	DeletionPhaseDeleting  DeletionPhase = "deleting"
	DeletionPhaseCompleted DeletionPhase = "completed"
	DeletionPhaseFailed    DeletionPhase = "failed"
)

// VerificationPassed is a tri-state: a job's source files may never have been verified.
type VerificationPassed string

const (
	VerificationUnknown VerificationPassed = "unknown"
	VerificationTrue    VerificationPassed = "true"
	VerificationFalse   VerificationPassed = "false"
)

// Verification is the optional verify sub-block of a Progress snapshot.
type Verification struct {
	Enabled     bool                `yaml:"enabled" json:"enabled"`
	Passed      VerificationPassed  `yaml:"passed" json:"passed"`
	FilesChecked int                `yaml:"files_checked" json:"files_checked"`
	Mismatches  int                 `yaml:"mismatches" json:"mismatches"`
}

// Deletion is the optional deletion sub-block of a Progress snapshot.
type Deletion struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Mode         DeletionMode  `yaml:"mode" json:"mode"`
	Phase        DeletionPhase `yaml:"phase" json:"phase"`
	FilesDeleted int           `yaml:"files_deleted" json:"files_deleted"`
	BytesDeleted int64         `yaml:"bytes_deleted" json:"bytes_deleted"`
}

// Progress is the live (or last-persisted) snapshot of a transfer's state.
type Progress struct {
	BytesTransferred int64         `yaml:"bytes_transferred" json:"bytes_transferred"`
	TotalBytes       int64         `yaml:"total_bytes" json:"total_bytes"`
	Percent          int           `yaml:"percent" json:"percent"`
	SpeedBytes       int64         `yaml:"speed_bytes" json:"speed_bytes"`
	ETASeconds       int64         `yaml:"eta_seconds" json:"eta_seconds"`
	StatusDetail     string        `yaml:"status_detail" json:"status_detail"`
	Verification     *Verification `yaml:"verification,omitempty" json:"verification,omitempty"`
	Deletion         *Deletion     `yaml:"deletion,omitempty" json:"deletion,omitempty"`
}

// Clamp caps Percent at [0,100]; the parser can transiently overshoot when it
// recomputes total_bytes mid-stream.
func (p *Progress) Clamp() {
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
}

// Settings holds the recognized per-job options. Keys outside this set are
// dropped when a job record is decoded; they are neither kept nor reported.
type Settings struct {
	BandwidthLimit       int64        `yaml:"bandwidth_limit" json:"bandwidth_limit"`
	DeleteSourceAfter    bool         `yaml:"delete_source_after" json:"delete_source_after"`
	DeletionMode         DeletionMode `yaml:"deletion_mode" json:"deletion_mode"`
	DeletionConfirmed    bool         `yaml:"deletion_confirmed" json:"deletion_confirmed"`
	SkipDeletionThisRun  bool         `yaml:"skip_deletion_this_run" json:"skip_deletion_this_run"`
	ChecksumMode         bool         `yaml:"checksum_mode" json:"checksum_mode"`
}

// ShouldDelete reports whether this run should drive source deletion.
func (s Settings) ShouldDelete() bool {
	return s.DeleteSourceAfter && s.DeletionConfirmed && !s.SkipDeletionThisRun
}

// Job is the durable record owned by the Job Store (C3) and mirrored briefly
// in-memory by the Supervisor (C4) while an engine is live.
type Job struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Source    string    `yaml:"source" json:"source"`
	Dest      string    `yaml:"dest" json:"dest"`
	Type      Type      `yaml:"type" json:"type"`
	Status    Status    `yaml:"status" json:"status"`
	Progress  Progress  `yaml:"progress" json:"progress"`
	Settings  Settings  `yaml:"settings" json:"settings"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
	Version   int64     `yaml:"version" json:"version"`
}

// Touch bumps Version and UpdatedAt. Every progress or status mutation must
// call this before a write reaches the store (spec §3, invariant 1 in §8).
func (j *Job) Touch(now time.Time) {
	j.Version++
	j.UpdatedAt = now
}

// CanStart reports whether Start is accepted from the job's current status.
func (j *Job) CanStart() bool {
	switch j.Status {
	case StatusPending, StatusPaused, StatusFailed:
		return true
	default:
		return false
	}
}

// CanStop reports whether Stop is accepted from the job's current status.
func (j *Job) CanStop() bool {
	return j.Status == StatusRunning
}
