package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/deletion"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"go.uber.org/zap"
)

// localTransientExitCodes are rsync exit codes that are unambiguously
// transient (network-ish) failures worth retrying.
// (original_source/engines/rsync_engine.py: NETWORK_ERROR_CODES)
var localTransientExitCodes = map[int]bool{
	10: true, // RERR_SOCKETIO
	12: true, // RERR_PROTOCOL
	30: true, // timeout in data send/receive
	35: true, // timeout waiting for daemon connection
}

// localAmbiguousExitCode is the rsync exit code that is transient only
// sometimes; the tail of its output must be pattern-matched to decide.
const localAmbiguousExitCode = 23

// LocalCopy drives rsync as a child process, implementing Engine.
type LocalCopy struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	progress model.Progress
	running  bool

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	logPath      string
	appendVerify bool
}

// NewLocalCopy builds a LocalCopy adapter. logPath is the per-job transfer
// log file the monitor loop appends to.
func NewLocalCopy(cfg Config, logPath string, log *zap.Logger) *LocalCopy {
	return &LocalCopy{
		cfg:          cfg,
		log:          log,
		logPath:      logPath,
		appendVerify: probeAppendVerify(),
	}
}

// probeAppendVerify checks whether the installed rsync supports
// --append-verify by grepping `rsync --help` output, capped at 5s
// (original_source/engines/rsync_engine.py: _check_append_verify_support).
func probeAppendVerify() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "rsync", "--help").CombinedOutput()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "--append-verify")
}

// IsRunning reports whether a child process is currently live.
func (e *LocalCopy) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Progress returns a value copy of the current snapshot.
func (e *LocalCopy) Progress() model.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Start launches rsync and its retry-driving monitor goroutine. Returns
// false if a process is already live.
func (e *LocalCopy) Start() bool {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return false
	}
	e.running = true
	e.done = make(chan struct{})
	e.progress.Deletion = newDeletionProgress(e.cfg)
	e.mu.Unlock()

	go e.runWithRetries()
	return true
}

// Stop politely terminates the live child, then force-kills after a grace
// period, and waits up to five seconds for the monitor goroutine to exit.
func (e *LocalCopy) Stop() bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
	return true
}

func (e *LocalCopy) runWithRetries() {
	defer func() {
		e.mu.Lock()
		e.running = false
		close(e.done)
		e.mu.Unlock()
	}()

	attempt := 0
	for {
		transient := e.runOnce(attempt)
		if !transient {
			return
		}

		e.mu.Lock()
		stopped := !e.running
		e.mu.Unlock()
		if stopped {
			return
		}

		e.setStatusDetail(retryingStatusDetail)
		if attempt >= e.cfg.MaxRetries {
			e.setStatusDetail(fmt.Sprintf("failed after %d retries", attempt))
			return
		}
		select {
		case <-time.After(backoffDelay(attempt)):
		}
		attempt++
	}
}

// runOnce runs a single rsync invocation to completion (or cancellation)
// and reports whether the failure was transient (worth another attempt).
func (e *LocalCopy) runOnce(attempt int) bool {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	args := e.buildArgs()
	cmd := exec.CommandContext(ctx, "rsync", args...)
	// Cancellation sends SIGTERM first; the child is killed if it is still
	// alive five seconds later.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.appendLog(fmt.Sprintf("failed to open stdout pipe: %v", err))
		return false
	}
	cmd.Stderr = cmd.Stdout

	e.mu.Lock()
	e.cmd = cmd
	e.mu.Unlock()

	if err := cmd.Start(); err != nil {
		e.appendLog(fmt.Sprintf("failed to start rsync: %v", err))
		return false
	}

	tail := e.monitorOutput(stdout)
	err = cmd.Wait()

	if err == nil {
		e.finishTransferPhase()
		audit := deletion.NewAuditLog(e.logPath + ".audit")
		switch {
		case e.cfg.DeletionMode == model.DeletionModeVerifyThenDelete && e.cfg.DeleteSourceAfter:
			e.RunDeletion(context.Background(), audit)
		case e.cfg.DeletionMode == model.DeletionModePerFile && e.cfg.DeleteSourceAfter:
			// rsync --remove-source-files already deleted each file as it
			// was copied; this only prunes directories it left behind.
			deletion.FinalizePerFile(e.cfg.Source, audit, 0, e.Progress().BytesTransferred)
			e.setDeletionPhase(model.DeletionPhaseCompleted)
		}
		return false
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	if ctx.Err() == context.Canceled {
		return false
	}

	transient := localTransientExitCodes[exitCode]
	if exitCode == localAmbiguousExitCode {
		transient = hasTransientPattern(strings.ToLower(tail))
	}
	if !transient {
		e.appendLog(fmt.Sprintf("rsync exited %d (non-transient): %v", exitCode, err))
		e.setStatusDetail(fmt.Sprintf("failed: exit %d", exitCode))
	} else {
		e.appendLog(fmt.Sprintf("rsync exited %d (transient, attempt %d): %v", exitCode, attempt, err))
	}
	return transient
}

// buildArgs constructs the rsync command line
// (original_source/engines/rsync_engine.py: start()).
func (e *LocalCopy) buildArgs() []string {
	args := []string{"-ah", "--partial", "--progress"}
	if e.appendVerify {
		args = append(args, "--append-verify")
	}
	if e.cfg.DeletionMode == model.DeletionModePerFile && e.cfg.DeleteSourceAfter {
		args = append(args, "--remove-source-files")
	}
	if e.cfg.VerificationMode == "checksum" {
		args = append(args, "--checksum")
	}
	if e.cfg.BandwidthLimitKB > 0 {
		args = append(args, "--bwlimit", strconv.FormatInt(e.cfg.BandwidthLimitKB, 10))
	}
	args = append(args, e.cfg.Source, e.cfg.Dest)
	return args
}

// monitorOutput reads rsync's merged stdout/stderr a character at a time,
// splitting on both '\n' (a completed log line) and '\r' (an in-place
// progress refresh). It returns the last non-empty fragment seen, used to
// pattern-match an ambiguous exit code.
// (original_source/engines/rsync_engine.py: _monitor_output)
func (e *LocalCopy) monitorOutput(r io.Reader) string {
	reader := bufio.NewReader(r)
	var buf strings.Builder
	var lastFragment string

	flush := func() {
		line := buf.String()
		buf.Reset()
		if strings.TrimSpace(line) == "" {
			return
		}
		lastFragment = line
		e.appendLog(line)
		e.applyUpdate(parseLocalCopyLine(line, e.Progress().TotalBytes))
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if buf.Len() > 0 {
				flush()
			}
			return lastFragment
		}
		switch b {
		case '\n', '\r':
			flush()
		default:
			buf.WriteByte(b)
		}
	}
}

func (e *LocalCopy) applyUpdate(u localCopyUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if u.hasBytes {
		e.progress.BytesTransferred = u.bytes
	}
	if u.hasTotal {
		e.progress.TotalBytes = u.total
	}
	if u.hasPercent {
		e.progress.Percent = u.percent
	}
	if u.hasSpeed {
		e.progress.SpeedBytes = u.speed
	}
	if u.hasETA {
		e.progress.ETASeconds = u.eta
	}
	e.progress.Clamp()
}

func (e *LocalCopy) setStatusDetail(detail string) {
	e.mu.Lock()
	e.progress.StatusDetail = detail
	e.mu.Unlock()
}

func (e *LocalCopy) appendLog(line string) {
	f, err := os.OpenFile(e.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(time.Now().Format("2006-01-02 15:04:05") + " " + line + "\n")
}

// finishTransferPhase records a clean (exit 0) completion. Deletion, when
// configured, is then driven by runOnce itself, via RunDeletion below or
// deletion.FinalizePerFile.
func (e *LocalCopy) finishTransferPhase() {
	e.mu.Lock()
	e.progress.Percent = 100
	e.progress.StatusDetail = "transfer complete"
	e.mu.Unlock()
}

// RunDeletion executes the VerifyThenDelete pipeline for this job's source,
// called from runOnce once the transfer phase has completed successfully
// and the job's settings confirm deletion.
func (e *LocalCopy) RunDeletion(ctx context.Context, audit *deletion.AuditLog) (filesDeleted int, bytesDeleted int64, verified bool) {
	e.setDeletionPhase(model.DeletionPhaseVerifying)

	pipeline := deletion.NewLocalPipeline(e.cfg.Source, e.cfg.Dest, e.cfg.VerificationMode == "checksum", audit, e.log)
	audit.LogStart("verify_then_delete", 0)

	verified = pipeline.Verify(ctx)
	if !verified {
		e.setDeletionPhase(model.DeletionPhaseFailed)
		return 0, 0, false
	}

	e.setDeletionPhase(model.DeletionPhaseDeleting)
	filesDeleted, bytesDeleted, _ = pipeline.DeleteVerified(func(files int, bytes int64) {
		e.mu.Lock()
		if e.progress.Deletion != nil {
			e.progress.Deletion.FilesDeleted = files
			e.progress.Deletion.BytesDeleted = bytes
		}
		e.mu.Unlock()
	})
	pipeline.CleanupEmptyDirs()
	audit.LogEnd(filesDeleted, bytesDeleted, 0)
	e.setDeletionPhase(model.DeletionPhaseCompleted)
	return filesDeleted, bytesDeleted, true
}

// setDeletionPhase advances the Deletion sub-block's phase, a no-op when
// deletion was never configured for this run.
func (e *LocalCopy) setDeletionPhase(phase model.DeletionPhase) {
	e.mu.Lock()
	if e.progress.Deletion != nil {
		e.progress.Deletion.Phase = phase
	}
	e.mu.Unlock()
}
