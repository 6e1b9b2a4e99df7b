// Package deletion implements the Deletion Pipeline (C2): pre-flight
// safety checks, the PerFile and VerifyThenDelete modes, and the per-job
// plain-text audit log.
package deletion

import (
	"fmt"
	"os"
	"time"
)

// AuditLog is a best-effort, append-only plain text log: one file per job,
// three entry kinds (START/DELETED/END) plus informational VERIFY notes.
// Writes never raise (spec §4.2).
type AuditLog struct {
	path string
}

// NewAuditLog returns an AuditLog that appends to path; the file is opened,
// and created if absent, on each write.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (a *AuditLog) append(line string) {
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	ts := time.Now().Format("2006-01-02 15:04:05")
	_, _ = f.WriteString(fmt.Sprintf("[%s] %s\n", ts, line))
}

// LogStart records the START entry: mode and the estimated file count.
func (a *AuditLog) LogStart(mode string, estimatedFiles int) {
	a.append(fmt.Sprintf("START mode=%s estimated_files=%d", mode, estimatedFiles))
}

// LogDeleted records one DELETED entry: timestamp (implicit), path, size,
// and an optional note.
func (a *AuditLog) LogDeleted(path string, size int64, note string) {
	if note != "" {
		a.append(fmt.Sprintf("DELETED path=%q size=%d note=%q", path, size, note))
		return
	}
	a.append(fmt.Sprintf("DELETED path=%q size=%d", path, size))
}

// LogEnd records the END summary entry.
func (a *AuditLog) LogEnd(totalFiles int, totalBytes int64, errors int) {
	a.append(fmt.Sprintf("END total_files=%d total_bytes=%d errors=%d", totalFiles, totalBytes, errors))
}

// LogVerification records a verify-phase outcome as an informational note
// in the same audit log, so the complete story of a run is in one file.
func (a *AuditLog) LogVerification(passed bool, detail string) {
	a.append(fmt.Sprintf("VERIFY passed=%t detail=%q", passed, detail))
}
