package deletion

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/molotovsingh/personal-backup-tool/internal/errs"
)

// spaceSafetyFactor is the free-space margin required at the destination
// before a deletion-bearing run is allowed to start: the destination must
// have at least 110% of the source size free (spec §4.2).
const spaceSafetyFactor = 1.10

// PreFlightResult carries the outcome of PreFlightCheck: OK reports whether
// the run may proceed, Warning is a non-fatal note worth surfacing (e.g.
// space could not be checked for a cloud destination). A hard stop is
// reported through PreFlightCheck's error return instead.
type PreFlightResult struct {
	OK      bool
	Warning string
}

// PreFlightCheck runs the safety checks a deletion-bearing job must pass
// before its engine starts: the source must exist and be non-empty, the
// destination must not be the same path as the source, and (for local
// destinations only) the destination must have enough free space. Cloud
// destinations cannot be statted locally, so the space check degrades to a
// warning rather than a hard failure (spec §4.2, §9).
func PreFlightCheck(source, dest string, destIsCloud bool) (PreFlightResult, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return PreFlightResult{}, fmt.Errorf("%w: source %q does not exist", errs.ErrPreFlight, source)
		}
		return PreFlightResult{}, err
	}

	sourceSize, err := dirSize(source, info)
	if err != nil {
		return PreFlightResult{}, err
	}
	if sourceSize == 0 {
		return PreFlightResult{}, fmt.Errorf("%w: source %q is empty", errs.ErrPreFlight, source)
	}

	if !destIsCloud {
		sameDest, err := samePath(source, dest)
		if err != nil {
			return PreFlightResult{}, err
		}
		if sameDest {
			return PreFlightResult{}, fmt.Errorf("%w: source and destination resolve to the same path", errs.ErrPreFlight)
		}

		free, err := freeSpace(dest)
		if err != nil {
			return PreFlightResult{OK: true, Warning: "could not determine free space at destination"}, nil
		}
		required := int64(float64(sourceSize) * spaceSafetyFactor)
		if free < required {
			return PreFlightResult{}, fmt.Errorf("%w: insufficient free space at destination (%d bytes free, %d required)", errs.ErrPreFlight, free, required)
		}
		return PreFlightResult{OK: true}, nil
	}

	return PreFlightResult{OK: true, Warning: "destination is a cloud remote; free space was not checked"}, nil
}

func dirSize(path string, info os.FileInfo) (int64, error) {
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err := filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total, err
}

func samePath(a, b string) (bool, error) {
	ra, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	rb, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return filepath.Clean(ra) == filepath.Clean(rb), nil
}

func freeSpace(path string) (int64, error) {
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
