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

// CloudCopy drives rclone as a child process, implementing Engine. Unlike
// rsync, rclone has no exit codes that are unambiguously transient: every
// non-zero exit is classified by scanning its own output tail
// (original_source/engines/rclone_engine.py: NETWORK_ERROR_PATTERNS — a
// distinct, shorter list than rsync's, so it is not shared via parse.go's
// transientPatterns).
var cloudTransientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"network is unreachable",
	"no route to host",
	"temporary failure",
	"broken pipe",
}

func hasCloudTransientPattern(text string) bool {
	for _, p := range cloudTransientPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// CloudCopy drives rclone as a child process, implementing Engine.
type CloudCopy struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	progress model.Progress
	running  bool

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	logPath string
	move    bool // true selects "rclone move" (drives PerFile deletion)
}

// NewCloudCopy builds a CloudCopy adapter.
func NewCloudCopy(cfg Config, logPath string, log *zap.Logger) *CloudCopy {
	return &CloudCopy{
		cfg:     cfg,
		log:     log,
		logPath: logPath,
		move:    cfg.DeletionMode == model.DeletionModePerFile && cfg.DeleteSourceAfter,
	}
}

// IsRunning reports whether a child process is currently live.
func (e *CloudCopy) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Progress returns a value copy of the current snapshot.
func (e *CloudCopy) Progress() model.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Start launches rclone and its retry-driving monitor goroutine. Returns
// false if a process is already live.
func (e *CloudCopy) Start() bool {
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
func (e *CloudCopy) Stop() bool {
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

func (e *CloudCopy) runWithRetries() {
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

func (e *CloudCopy) runOnce(attempt int) bool {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	args := e.buildArgs()
	// cmd.Stdout is left nil (discarded), mirroring stdout=DEVNULL in the
	// original adapter; only stderr carries rclone's progress output.
	cmd := exec.CommandContext(ctx, "rclone", args...)
	// Cancellation sends SIGTERM first; the child is killed if it is still
	// alive five seconds later.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.appendLog(fmt.Sprintf("failed to open stderr pipe: %v", err))
		return false
	}

	e.mu.Lock()
	e.cmd = cmd
	e.mu.Unlock()

	if err := cmd.Start(); err != nil {
		e.appendLog(fmt.Sprintf("failed to start rclone: %v", err))
		return false
	}

	tail := e.monitorOutput(stderr)
	err = cmd.Wait()

	if err == nil {
		e.finishTransferPhase()
		audit := deletion.NewAuditLog(e.logPath + ".audit")
		switch {
		case e.cfg.DeletionMode == model.DeletionModeVerifyThenDelete && e.cfg.DeleteSourceAfter:
			e.RunDeletion(context.Background(), audit)
		case e.move:
			// rclone move --delete-empty-src-dirs already removed each
			// source file; this only writes the PerFile summary entry.
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

	// rclone has no definite transient exit codes: classify purely on the
	// output tail (original_source/engines/rclone_engine.py: _is_network_error).
	transient := hasCloudTransientPattern(strings.ToLower(tail))
	if !transient {
		e.appendLog(fmt.Sprintf("rclone exited %d (non-transient): %v", exitCode, err))
		e.setStatusDetail(fmt.Sprintf("failed: exit %d", exitCode))
	} else {
		e.appendLog(fmt.Sprintf("rclone exited %d (transient, attempt %d): %v", exitCode, attempt, err))
	}
	return transient
}

// buildArgs constructs the rclone command line
// (original_source/engines/rclone_engine.py: start()).
func (e *CloudCopy) buildArgs() []string {
	op := "copy"
	if e.move {
		op = "move"
	}
	args := []string{op, "--progress", "--stats", "1s", "--stats-one-line",
		"--retries", "1", "--low-level-retries", "3"}
	if e.move {
		args = append(args, "--delete-empty-src-dirs")
	}
	if e.cfg.VerificationMode == "checksum" {
		args = append(args, "--checksum")
	}
	if e.cfg.BandwidthLimitKB > 0 {
		args = append(args, "--bwlimit", strconv.FormatInt(e.cfg.BandwidthLimitKB, 10)+"k")
	}
	args = append(args, e.cfg.Source, e.cfg.Dest)
	return args
}

// monitorOutput reads rclone's stderr line by line (rclone writes whole
// lines, not character-by-character progress like rsync) and returns the
// last non-empty line seen, used to pattern-match a failing exit.
// (original_source/engines/rclone_engine.py: _monitor_output)
func (e *CloudCopy) monitorOutput(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	var lastLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lastLine = line
		e.appendLog(line)
		e.applyUpdate(parseCloudCopyLine(line))
	}
	return lastLine
}

func (e *CloudCopy) applyUpdate(u cloudCopyUpdate) {
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

func (e *CloudCopy) setStatusDetail(detail string) {
	e.mu.Lock()
	e.progress.StatusDetail = detail
	e.mu.Unlock()
}

func (e *CloudCopy) appendLog(line string) {
	f, err := os.OpenFile(e.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(time.Now().Format("2006-01-02 15:04:05") + " " + line + "\n")
}

func (e *CloudCopy) finishTransferPhase() {
	e.mu.Lock()
	e.progress.Percent = 100
	e.progress.StatusDetail = "transfer complete"
	e.mu.Unlock()
}

// sourceIsRemote reports whether the configured source looks like an
// rclone remote path ("remote:path") rather than a local filesystem path.
func (e *CloudCopy) sourceIsRemote() bool {
	idx := strings.Index(e.cfg.Source, ":")
	return idx > 1 // allow for Windows drive letters like "C:\..."
}

// RunDeletion executes the VerifyThenDelete pipeline for this job's source.
func (e *CloudCopy) RunDeletion(ctx context.Context, audit *deletion.AuditLog) (filesDeleted int, bytesDeleted int64, verified bool) {
	e.setDeletionPhase(model.DeletionPhaseVerifying)

	pipeline := deletion.NewCloudPipeline(e.cfg.Source, e.cfg.Dest, e.cfg.VerificationMode == "checksum", e.sourceIsRemote(), audit, e.log)
	audit.LogStart("verify_then_delete", 0)

	verified = pipeline.Verify(ctx)
	if !verified {
		e.setDeletionPhase(model.DeletionPhaseFailed)
		return 0, 0, false
	}

	e.setDeletionPhase(model.DeletionPhaseDeleting)
	filesDeleted, bytesDeleted, _ = pipeline.DeleteVerified(ctx, func(files int, bytes int64) {
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
func (e *CloudCopy) setDeletionPhase(phase model.DeletionPhase) {
	e.mu.Lock()
	if e.progress.Deletion != nil {
		e.progress.Deletion.Phase = phase
	}
	e.mu.Unlock()
}
