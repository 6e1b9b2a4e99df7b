package deletion

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// LocalPipeline runs the verify-then-delete sequence for a LocalCopy job:
// an rsync dry-run diff to confirm the destination matches the source,
// then a manual source walk that removes every regular file under the source,
// then a bottom-up prune of directories left empty by the deletions
// (original_source/engines/rsync_engine.py: _verify_backup,
// _delete_verified_files, _cleanup_empty_dirs).
type LocalPipeline struct {
	Source   string
	Dest     string
	Checksum bool
	Audit    *AuditLog
	log      *zap.Logger
}

// NewLocalPipeline builds a LocalPipeline.
func NewLocalPipeline(source, dest string, checksum bool, audit *AuditLog, log *zap.Logger) *LocalPipeline {
	return &LocalPipeline{Source: source, Dest: dest, Checksum: checksum, Audit: audit, log: log}
}

// Verify runs `rsync --dry-run -r -i [--checksum] source dest` and counts
// the itemized-change lines rsync would still apply. Zero such lines means
// the destination is a verified match.
func (p *LocalPipeline) Verify(ctx context.Context) bool {
	args := []string{"--dry-run", "-r", "-i"}
	if p.Checksum {
		args = append(args, "--checksum")
	}
	args = append(args, ensureTrailingSlash(p.Source), p.Dest)

	cmd := exec.CommandContext(ctx, "rsync", args...)
	out, err := cmd.Output()
	if err != nil {
		p.Audit.LogVerification(false, "rsync dry-run failed: "+err.Error())
		return false
	}

	changes := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, ">") {
			changes++
		}
	}
	passed := changes == 0
	p.Audit.LogVerification(passed, "dry-run reported "+strconv.Itoa(changes)+" outstanding changes")
	return passed
}

// DeleteVerified walks the source tree and removes every regular file,
// tolerating permission errors on individual files rather than aborting the
// whole run. progress is invoked after each successful removal.
func (p *LocalPipeline) DeleteVerified(progress func(filesDeleted int, bytesDeleted int64)) (int, int64, error) {
	var filesDeleted int
	var bytesDeleted int64

	err := filepath.Walk(p.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		size := info.Size()
		if rmErr := os.Remove(path); rmErr != nil {
			if os.IsPermission(rmErr) {
				p.Audit.LogDeleted(path, size, "skipped: permission denied")
				return nil
			}
			p.Audit.LogDeleted(path, size, "skipped: "+rmErr.Error())
			return nil
		}
		filesDeleted++
		bytesDeleted += size
		p.Audit.LogDeleted(path, size, "")
		if progress != nil {
			progress(filesDeleted, bytesDeleted)
		}
		return nil
	})
	return filesDeleted, bytesDeleted, err
}

// CleanupEmptyDirs prunes directories left empty by DeleteVerified, deepest
// first, stopping short of removing the source root itself.
func (p *LocalPipeline) CleanupEmptyDirs() {
	var dirs []string
	_ = filepath.Walk(p.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && path != p.Source {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		_ = os.Remove(d)
	}
}

func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
