package deletion

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

func itoaPruned(n int) string {
	return strconv.Itoa(n)
}

// FinalizePerFile is the PerFile-mode counterpart to the VerifyThenDelete
// pipelines in local.go and cloud.go. In PerFile mode the transfer tool itself removes each
// source file as soon as it is copied (rsync --remove-source-files, rclone
// move), so there is no per-file verify/delete step here: this only prunes
// directories the tool left empty and writes one summary audit entry.
func FinalizePerFile(source string, audit *AuditLog, filesTransferred int, bytesTransferred int64) {
	audit.LogStart("per_file", filesTransferred)

	var dirs []string
	_ = filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && path != source {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	pruned := 0
	for _, d := range dirs {
		if os.Remove(d) == nil {
			pruned++
		}
	}
	if pruned > 0 {
		audit.LogDeleted(source, 0, "pruned "+itoaPruned(pruned)+" empty directories")
	}

	audit.LogEnd(filesTransferred, bytesTransferred, 0)
}
